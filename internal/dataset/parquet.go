package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const readBatch = 128

// leafInfo caches how values of one leaf column map back into a Record.
type leafInfo struct {
	path     []string
	utf8     bool
	repeated bool
}

// readFragment decodes every row of one parquet file.
func readFragment(path string) (*Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(fh, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	schema := pf.Schema()
	leaves, err := schemaLeaves(schema)
	if err != nil {
		return nil, err
	}

	table := &Table{Records: make([]Record, 0, pf.NumRows())}
	for _, f := range schema.Fields() {
		table.Columns = append(table.Columns, f.Name())
	}

	buf := make([]parquet.Row, readBatch)
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, leaves, buf, table); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func readRowGroup(rg parquet.RowGroup, leaves []leafInfo, buf []parquet.Row, table *Table) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			rec, decodeErr := decodeRow(row, leaves)
			if decodeErr != nil {
				return decodeErr
			}
			table.Records = append(table.Records, rec)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

func schemaLeaves(schema *parquet.Schema) ([]leafInfo, error) {
	paths := schema.Columns()
	leaves := make([]leafInfo, len(paths))
	for _, p := range paths {
		leaf, ok := schema.Lookup(p...)
		if !ok {
			return nil, fmt.Errorf("schema column %v not found", p)
		}
		if leaf.ColumnIndex < 0 || leaf.ColumnIndex >= len(leaves) {
			return nil, fmt.Errorf("schema column %v has index %d out of range", p, leaf.ColumnIndex)
		}
		lt := leaf.Node.Type().LogicalType()
		leaves[leaf.ColumnIndex] = leafInfo{
			path:     append([]string(nil), p...),
			utf8:     lt != nil && lt.UTF8 != nil,
			repeated: leaf.MaxRepetitionLevel > 0,
		}
	}
	return leaves, nil
}

func decodeRow(row parquet.Row, leaves []leafInfo) (Record, error) {
	rec := Record{}
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(leaves) {
			return nil, fmt.Errorf("value references unknown column %d", col)
		}
		if v.IsNull() {
			continue
		}
		leaf := leaves[col]
		val := convertValue(v, leaf.utf8)

		if leaf.repeated {
			// Lists are flattened onto their top-level column.
			existing, _ := rec[leaf.path[0]].([]any)
			rec[leaf.path[0]] = append(existing, val)
			continue
		}
		setNested(rec, leaf.path, val)
	}
	return rec, nil
}

func setNested(rec Record, path []string, val any) {
	m := map[string]any(rec)
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = val
}

// convertValue copies byte arrays out of the reader's page buffers, which are
// reused between batches.
func convertValue(v parquet.Value, utf8 bool) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if utf8 {
			return string(v.ByteArray())
		}
		return bytes.Clone(v.ByteArray())
	default:
		return v.String()
	}
}
