package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSVFile reads every record of a CSV file.
func ReadCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(f)
}

// ReadCSV reads CSV records, detecting the delimiter (";" as exported by
// pt-BR spreadsheets, "," or tab) from the header line.
func ReadCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, eris.Wrap(err, "importer: peek csv header")
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(first)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "importer: read csv")
	}
	return records, nil
}

func detectDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	best, bestCount := ',', bytes.Count(sample, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(sample, []byte{byte(d)}); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
