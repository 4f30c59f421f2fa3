package assemble

import (
	"fmt"
)

// Assemble merges the feature tables into one wide per-host table.
// Tables are given in precedence order; the first non-empty table
// anchors the merge and every host present in any table appears in
// the output. A host missing from a feature group gets 0 for that
// group's columns, never a hole. Columns named in drop are join
// scaffolding and are excluded from the output.
func Assemble(tables []*Table, drop []string) (*Table, error) {
	dropSet := make(map[string]bool, len(drop))
	for _, c := range drop {
		dropSet[c] = true
	}

	// Column layout: precedence order, scaffolding removed. Duplicate
	// column names across groups are disambiguated with the table name.
	var columns []string
	seen := make(map[string]bool)
	type colSource struct {
		table int
		index int
	}
	var sources []colSource

	for ti, t := range tables {
		if t == nil {
			continue
		}
		for ci, col := range t.Columns {
			if dropSet[col] {
				continue
			}
			name := col
			if seen[name] {
				name = t.Name + "_" + col
			}
			if seen[name] {
				return nil, fmt.Errorf("duplicate feature column %q", name)
			}
			seen[name] = true
			columns = append(columns, name)
			sources = append(sources, colSource{table: ti, index: ci})
		}
	}

	out := NewTable("features", columns)

	// Union of hosts across all groups, anchored by precedence.
	for _, t := range tables {
		if t == nil {
			continue
		}
		for host := range t.Rows {
			if _, exists := out.Rows[host]; exists {
				continue
			}
			row := make([]float64, len(columns))
			for i, src := range sources {
				if values, ok := tables[src.table].Rows[host]; ok {
					row[i] = values[src.index]
				}
			}
			out.Rows[host] = row
		}
	}

	return out, nil
}
