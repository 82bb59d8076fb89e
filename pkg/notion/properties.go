package notion

import (
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
)

// Text returns the plain text of a property regardless of its column type.
// Numbers are formatted without trailing zeros, multi-selects are joined
// with ", ". Missing or empty properties return "".
func Text(props notionapi.Properties, name string) string {
	prop, ok := props[name]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return joinRich(p.Title)
	case *notionapi.RichTextProperty:
		return joinRich(p.RichText)
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.StatusProperty:
		return p.Status.Name
	case *notionapi.MultiSelectProperty:
		return strings.Join(optionNames(p.MultiSelect), ", ")
	case *notionapi.NumberProperty:
		return strconv.FormatFloat(p.Number, 'f', -1, 64)
	case *notionapi.EmailProperty:
		return p.Email
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber
	case *notionapi.URLProperty:
		return p.URL
	}
	return ""
}

// Names returns the option names of a multi-select property. A rich text
// property is split on commas so hand-typed lists work too.
func Names(props notionapi.Properties, name string) []string {
	prop, ok := props[name]
	if !ok {
		return nil
	}
	switch p := prop.(type) {
	case *notionapi.MultiSelectProperty:
		return optionNames(p.MultiSelect)
	case *notionapi.RichTextProperty:
		var out []string
		for _, part := range strings.Split(joinRich(p.RichText), ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func joinRich(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(r.PlainText)
	}
	return strings.TrimSpace(b.String())
}

func optionNames(opts []notionapi.Option) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if o.Name != "" {
			out = append(out, o.Name)
		}
	}
	return out
}
