package dataset

// Record is one row. Nested parquet groups become map[string]any, repeated
// leaves become []any, UTF-8 byte arrays string and other byte arrays []byte.
// Null cells are absent.
type Record map[string]any

// Table is the in-memory union of all fragments of one dataset.
type Table struct {
	// Columns lists top-level column names in first-seen order.
	Columns []string
	Records []Record
}

func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Head returns a view of the first n rows sharing the underlying records.
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= len(t.Records) {
		return t
	}
	return &Table{Columns: t.Columns, Records: t.Records[:n]}
}

// concat appends fragments in the given order. Column sets are unioned;
// records keep only the cells their fragment had.
func concat(parts []*Table) *Table {
	out := &Table{}
	seen := map[string]bool{}
	total := 0
	for _, p := range parts {
		total += len(p.Records)
	}
	out.Records = make([]Record, 0, total)

	for _, p := range parts {
		for _, c := range p.Columns {
			if !seen[c] {
				seen[c] = true
				out.Columns = append(out.Columns, c)
			}
		}
		out.Records = append(out.Records, p.Records...)
	}
	return out
}

// approxSize estimates the in-memory footprint of a value, in the spirit of
// a deep memory_usage: payload bytes plus a fixed per-object overhead.
func approxSize(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case []byte:
		return int64(len(x)) + 24
	case string:
		return int64(len(x)) + 16
	case Record:
		return approxSize(map[string]any(x))
	case map[string]any:
		n := int64(48)
		for k, val := range x {
			n += int64(len(k)) + 16 + approxSize(val)
		}
		return n
	case []any:
		n := int64(24)
		for _, val := range x {
			n += 16 + approxSize(val)
		}
		return n
	default:
		return 8
	}
}
