// Package batch runs predictions over a dataset CSV and writes the output
// CSV, optionally persisting runs and watching a folder for new datasets.
package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrDataset marks a dataset that cannot be used at all.
var ErrDataset = errors.New("invalid dataset")

// Row is one dataset line.
type Row struct {
	Index      string
	ImageLink  string
	GroupID    string
	EntityName string
}

// Result is the prediction for one row. Reason holds a recovered failure
// and is never written to the output CSV.
type Result struct {
	Row        Row
	Prediction string
	// Kind is one of the metrics outcome labels.
	Kind   string
	Reason string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var requiredColumns = []string{"index", "image_link", "entity_name"}

// ReadDataset loads a dataset CSV with a header row.
func ReadDataset(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	rows, err := ParseDataset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ParseDataset resolves columns by header name, case-insensitively.
// group_id is optional; extra columns are ignored.
func ParseDataset(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	if b, _ := br.Peek(len(utf8BOM)); bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrDataset)
		}
		return nil, fmt.Errorf("%w: header: %w", ErrDataset, err)
	}
	cols := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing column(s) %s", ErrDataset, strings.Join(missing, ", "))
	}
	group, hasGroup := cols["group_id"]

	field := func(rec []string, i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrDataset, line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := Row{
			Index:      field(rec, cols["index"]),
			ImageLink:  field(rec, cols["image_link"]),
			EntityName: field(rec, cols["entity_name"]),
		}
		if hasGroup {
			row.GroupID = field(rec, group)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
