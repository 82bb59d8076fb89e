// Package importer loads prospect companies from spreadsheets and Notion
// databases into the store.
package importer

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/enrich"
	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/qualify"
)

// Store is the persistence surface the importer needs.
type Store interface {
	UpsertCompanies(ctx context.Context, companies []model.Company) (int, error)
}

// field is a company attribute a column can map to.
type field int

const (
	fieldUnknown field = iota
	fieldName
	fieldTaxID
	fieldSector
	fieldState
	fieldCity
	fieldEmployees
	fieldEmployeesMin
	fieldEmployeesMax
	fieldCapital
	fieldMaturity
	fieldTechnologies
)

// aliases maps folded header names to fields. Headers are folded with
// qualify.Fold so accents and case do not matter.
var aliases = map[string]field{
	"nome":          fieldName,
	"empresa":       fieldName,
	"razao social":  fieldName,
	"nome fantasia": fieldName,
	"name":          fieldName,
	"company":       fieldName,
	"company name":  fieldName,

	"cnpj":   fieldTaxID,
	"tax id": fieldTaxID,
	"tax_id": fieldTaxID,

	"setor":    fieldSector,
	"segmento": fieldSector,
	"cnae":     fieldSector,
	"sector":   fieldSector,
	"industry": fieldSector,

	"uf":        fieldState,
	"estado":    fieldState,
	"state":     fieldState,
	"cidade":    fieldCity,
	"municipio": fieldCity,
	"city":      fieldCity,

	"funcionarios":     fieldEmployees,
	"colaboradores":    fieldEmployees,
	"employees":        fieldEmployees,
	"headcount":        fieldEmployees,
	"funcionarios min": fieldEmployeesMin,
	"employees min":    fieldEmployeesMin,
	"employees_min":    fieldEmployeesMin,
	"funcionarios max": fieldEmployeesMax,
	"employees max":    fieldEmployeesMax,
	"employees_max":    fieldEmployeesMax,

	"capital":                fieldCapital,
	"capital social":         fieldCapital,
	"maturidade digital":     fieldMaturity,
	"digital maturity":       fieldMaturity,
	"digital_maturity":       fieldMaturity,
	"digital maturity score": fieldMaturity,

	"tecnologias":  fieldTechnologies,
	"technologies": fieldTechnologies,
	"stack":        fieldTechnologies,
}

func lookupField(header string) field {
	if f, ok := aliases[qualify.Fold(header)]; ok {
		return f
	}
	return fieldUnknown
}

// RowError describes a row that could not be imported. Row is 1-based and
// counts the header, matching what a spreadsheet shows.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Summary reports the outcome of an import.
type Summary struct {
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// Importer maps tabular rows to companies and persists them.
type Importer struct {
	store Store
	log   *zap.Logger
}

// New creates an Importer.
func New(st Store) *Importer {
	return &Importer{
		store: st,
		log:   zap.L().With(zap.String("component", "importer")),
	}
}

// ImportFile reads a .csv or .xlsx file and upserts its rows for tenantID.
func (im *Importer) ImportFile(ctx context.Context, tenantID, path string) (*Summary, error) {
	var (
		rows   [][]string
		source model.CompanySource
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		rows, err = ReadCSVFile(path)
		source = model.SourceCSV
	case ".xlsx":
		rows, err = ReadXLSX(path, "")
		source = model.SourceXLSX
	default:
		return nil, eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Summary{}, nil
	}

	companies, sum := MapRows(tenantID, source, rows[0], rows[1:])
	for i := range companies {
		companies[i].SourceMeta = map[string]any{"file": filepath.Base(path)}
	}
	return im.persist(ctx, companies, sum)
}

func (im *Importer) persist(ctx context.Context, companies []model.Company, sum *Summary) (*Summary, error) {
	if len(companies) > 0 {
		n, err := im.store.UpsertCompanies(ctx, companies)
		if err != nil {
			return nil, eris.Wrap(err, "importer: upsert companies")
		}
		sum.Imported = n
	}
	im.log.Info("import complete",
		zap.Int("rows", sum.Rows),
		zap.Int("imported", sum.Imported),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

// MapRows converts data rows into companies using header aliasing. Rows
// without a name are skipped and reported. Rows repeating a CNPJ already
// seen in the same batch are skipped too.
func MapRows(tenantID string, source model.CompanySource, header []string, rows [][]string) ([]model.Company, *Summary) {
	cols := make([]field, len(header))
	for i, h := range header {
		cols[i] = lookupField(h)
	}

	b := newBatch(tenantID, source)
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		values := make(map[field]string, len(cols))
		for j, f := range cols {
			if f == fieldUnknown || j >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[j]); v != "" {
				values[f] = v
			}
		}
		b.add(i+2, values)
	}
	return b.companies, b.sum
}

// batch accumulates mapped companies and per-row errors.
type batch struct {
	tenantID  string
	source    model.CompanySource
	seen      map[string]int
	companies []model.Company
	sum       *Summary
}

func newBatch(tenantID string, source model.CompanySource) *batch {
	return &batch{
		tenantID: tenantID,
		source:   source,
		seen:     make(map[string]int),
		sum:      &Summary{},
	}
}

// add maps one row and reports whether it was accepted.
func (b *batch) add(row int, values map[field]string) bool {
	b.sum.Rows++
	c, reason := buildCompany(b.tenantID, b.source, values)
	if reason == "" && c.TaxID != "" {
		if first, dup := b.seen[c.TaxID]; dup {
			reason = "duplicate cnpj (first seen on row " + strconv.Itoa(first) + ")"
		} else {
			b.seen[c.TaxID] = row
		}
	}
	if reason != "" {
		b.sum.Skipped++
		b.sum.Errors = append(b.sum.Errors, RowError{Row: row, Reason: reason})
		return false
	}
	b.companies = append(b.companies, c)
	return true
}

func buildCompany(tenantID string, source model.CompanySource, v map[field]string) (model.Company, string) {
	c := model.Company{
		TenantID: tenantID,
		Name:     v[fieldName],
		Sector:   v[fieldSector],
		City:     v[fieldCity],
		Source:   source,
	}
	if c.Name == "" {
		return c, "missing company name"
	}

	if raw := v[fieldTaxID]; raw != "" {
		c.TaxID = enrich.NormalizeCNPJ(raw)
		if len(c.TaxID) != 14 {
			return c, "cnpj must have 14 digits"
		}
	}

	c.State = qualify.NormalizeState(v[fieldState])

	if raw := v[fieldEmployees]; raw != "" {
		lo, hi, ok := ParseRange(raw)
		if !ok {
			return c, "invalid employees value " + strconv.Quote(raw)
		}
		c.EmployeesMin, c.EmployeesMax = lo, hi
	}
	if raw := v[fieldEmployeesMin]; raw != "" {
		n, ok := ParseNumber(raw)
		if !ok {
			return c, "invalid employees_min value " + strconv.Quote(raw)
		}
		c.EmployeesMin = int(n)
	}
	if raw := v[fieldEmployeesMax]; raw != "" {
		n, ok := ParseNumber(raw)
		if !ok {
			return c, "invalid employees_max value " + strconv.Quote(raw)
		}
		c.EmployeesMax = int(n)
	}

	if raw := v[fieldCapital]; raw != "" {
		n, ok := ParseNumber(raw)
		if !ok {
			return c, "invalid capital value " + strconv.Quote(raw)
		}
		c.Capital = n
	}

	if raw := v[fieldMaturity]; raw != "" {
		n, ok := ParseNumber(raw)
		if !ok || n < 0 || n > 10 {
			return c, "digital maturity must be between 0 and 10"
		}
		c.DigitalMaturity = &n
	}

	if raw := v[fieldTechnologies]; raw != "" {
		c.Technologies = SplitList(raw)
	}
	return c, ""
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
