// Package assemble joins the per-node score exports and the externally
// produced feature tables into the final per-host wide feature table.
package assemble

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Table is a flat numeric feature table keyed by host. Columns hold
// the feature names in order; every row has exactly len(Columns)
// values.
type Table struct {
	Name    string
	Columns []string
	Rows    map[string][]float64
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		Rows:    make(map[string][]float64),
	}
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Set stores one host's feature values.
func (t *Table) Set(host string, values []float64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("table %s: expected %d values, got %d", t.Name, len(t.Columns), len(values))
	}
	t.Rows[host] = values
	return nil
}

// Hosts returns the row keys in sorted order.
func (t *Table) Hosts() []string {
	hosts := make([]string, 0, len(t.Rows))
	for h := range t.Rows {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// ReadCSV loads a feature table from a CSV file whose first column is
// the host key and whose remaining columns are numeric features. An
// unparseable numeric cell resolves to 0.
func ReadCSV(path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return NewTable(name, nil), nil
	}

	header := records[0]
	if len(header) < 1 {
		return nil, fmt.Errorf("%s: header has no columns", path)
	}

	table := NewTable(name, header[1:])
	for _, record := range records[1:] {
		if len(record) != len(header) || record[0] == "" {
			continue
		}
		values := make([]float64, len(record)-1)
		for i, cell := range record[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				v = 0
			}
			values[i] = v
		}
		table.Rows[record[0]] = values
	}

	return table, nil
}

// WriteCSV publishes the table atomically: the file is written to a
// temporary path and renamed into place, so readers never observe a
// half-written table. keyColumn names the first column; extra leading
// key values (e.g. the day) are prepended per row via prefix.
func (t *Table) WriteCSV(path string, keyColumns []string, prefix func(host string) []string) error {
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	writer := csv.NewWriter(f)
	header := append(append([]string{}, keyColumns...), t.Columns...)
	if err := writer.Write(header); err != nil {
		f.Close()
		return err
	}

	for _, host := range t.Hosts() {
		record := prefix(host)
		for _, v := range t.Rows[host] {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			f.Close()
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to publish %s: %w", path, err)
	}
	return nil
}
