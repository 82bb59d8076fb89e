package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// StatusProperty is the status column the importer filters and updates.
const StatusProperty = "Status"

// QueryAll follows the cursor until the database query is exhausted.
// Filter and sorts from base are carried to every page request.
func QueryAll(ctx context.Context, c Client, dbID string, base *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var (
		all    []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}

		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if base != nil {
			req.Filter = base.Filter
			req.Sorts = base.Sorts
			req.PageSize = base.PageSize
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// QueryByStatus returns every page whose status column equals status.
func QueryByStatus(ctx context.Context, c Client, dbID, status string) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: StatusProperty,
			Status: &notionapi.StatusFilterCondition{
				Equals: status,
			},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query status %q", status)
	}
	return pages, nil
}

// SetStatus moves a page to the given status.
func SetStatus(ctx context.Context, c Client, pageID, status string) error {
	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			StatusProperty: notionapi.StatusProperty{
				Status: notionapi.Status{Name: status},
			},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "notion: set status %s", pageID)
	}
	return nil
}
