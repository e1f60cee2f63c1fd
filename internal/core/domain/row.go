package domain

import "strings"

// Row is a record reduced to the columns its table actually has.
// Columns keep the table's column order.
type Row struct {
	Columns []string
	Values  []Value
}

// FilterRecord keeps the fields of record that name a column of schema.
// Unknown fields are dropped.
func FilterRecord(schema TableSchema, record map[string]any) Row {
	var row Row
	for _, col := range schema.Columns {
		raw, ok := record[col]
		if !ok {
			continue
		}
		row.Columns = append(row.Columns, col)
		row.Values = append(row.Values, ClassifyValue(raw))
	}
	return row
}

func (r Row) Empty() bool {
	return len(r.Columns) == 0
}

// Args returns the statement arguments in column order.
func (r Row) Args() []any {
	args := make([]any, len(r.Values))
	for i, v := range r.Values {
		args[i] = v.Arg()
	}
	return args
}

// Signature identifies the column list of the row, for statement reuse.
func (r Row) Signature() string {
	return strings.Join(r.Columns, ",")
}
