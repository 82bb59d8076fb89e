package store

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/model"
)

var nonDigitRe = regexp.MustCompile(`\D`)

// dedupeKey identifies a company within a tenant for imports: the CNPJ
// digits when known, the normalised name otherwise.
func dedupeKey(c *model.Company) string {
	if d := nonDigitRe.ReplaceAllString(c.TaxID, ""); d != "" {
		return "tax:" + d
	}
	return "name:" + strings.Join(strings.Fields(strings.ToLower(c.Name)), " ")
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal json")
	}
	return string(b), nil
}

func fromJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return eris.Wrap(json.Unmarshal([]byte(s), v), "store: unmarshal json")
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
