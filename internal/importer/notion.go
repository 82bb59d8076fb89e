package importer

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/pkg/notion"
)

// Notion statuses used by the company database.
const (
	NotionStatusPending  = "Importar"
	NotionStatusImported = "Importado"
)

// ImportNotion reads the pages of a Notion company database whose status
// equals status, upserts them for tenantID and marks imported pages with
// NotionStatusImported. An empty status imports every page and leaves the
// status column alone.
func (im *Importer) ImportNotion(ctx context.Context, nc notion.Client, dbID, tenantID, status string) (*Summary, error) {
	pages, err := fetchPages(ctx, nc, dbID, status)
	if err != nil {
		return nil, err
	}

	b := newBatch(tenantID, model.SourceNotion)
	var accepted []string
	for i, p := range pages {
		if b.add(i+1, p.values) {
			c := &b.companies[len(b.companies)-1]
			c.SourceMeta = map[string]any{"notion_page_id": p.id}
			accepted = append(accepted, p.id)
		}
	}

	sum, err := im.persist(ctx, b.companies, b.sum)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return sum, nil
	}

	for _, id := range accepted {
		if err := notion.SetStatus(ctx, nc, id, NotionStatusImported); err != nil {
			im.log.Warn("notion status update failed", zap.String("page_id", id), zap.Error(err))
		}
	}
	return sum, nil
}

type notionPage struct {
	id     string
	values map[field]string
}

func fetchPages(ctx context.Context, nc notion.Client, dbID, status string) ([]notionPage, error) {
	var (
		raw []notionapi.Page
		err error
	)
	if status != "" {
		raw, err = notion.QueryByStatus(ctx, nc, dbID, status)
	} else {
		raw, err = notion.QueryAll(ctx, nc, dbID, nil)
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: query notion")
	}

	out := make([]notionPage, 0, len(raw))
	for _, p := range raw {
		values := make(map[field]string)
		for _, name := range slices.Sorted(maps.Keys(p.Properties)) {
			f := lookupField(name)
			if f == fieldUnknown || values[f] != "" {
				continue
			}
			v := notion.Text(p.Properties, name)
			if f == fieldTechnologies {
				if names := notion.Names(p.Properties, name); len(names) > 0 {
					v = strings.Join(names, ", ")
				}
			}
			if v != "" {
				values[f] = v
			}
		}
		out = append(out, notionPage{id: string(p.ID), values: values})
	}
	return out, nil
}
