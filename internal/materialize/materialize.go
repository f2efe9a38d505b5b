package materialize

import (
	"fmt"
	"sort"

	"github.com/roach88/gqlbridge/internal/ir"
	"github.com/roach88/gqlbridge/internal/wire"
)

// KeyColumn is the output name of the entity key column.
const KeyColumn = "key"

// IsKeyName reports whether a selected name refers to the entity key.
func IsKeyName(name string) bool {
	return name == KeyColumn || name == "__key__" || name == "id"
}

// Field describes one output column.
//
// Type is fixed by the first non-null value seen in the column and is
// TypeUnknown while only nulls have been seen. Later values of another type
// do not change it.
type Field struct {
	Name     string
	Type     ir.Type
	Nullable bool
}

// Row is one output tuple, aligned with the result's fields.
type Row []ir.Value

// Result is a materialized batch.
type Result struct {
	Fields []Field
	Rows   []Row
}

// Index returns the position of the named column, or -1.
// Key names resolve to the key column.
func (r *Result) Index(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	if IsKeyName(name) {
		for i, f := range r.Fields {
			if f.Name == KeyColumn {
				return i
			}
		}
	}
	return -1
}

// Names returns the column names in order.
func (r *Result) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Materializer turns raw entity batches into typed rows.
type Materializer struct {
	dec *wire.Decoder
}

// New creates a Materializer that decodes values with dec.
func New(dec *wire.Decoder) *Materializer {
	return &Materializer{dec: dec}
}

// Parse converts entities into rows.
//
// With selected == nil the columns are the key column followed by the union
// of all property names, sorted. Otherwise the columns are exactly selected,
// in order; id, __key__ and key select the key column. A property an entity
// lacks is Null in that row.
func (m *Materializer) Parse(results []wire.EntityResult, selected []string) (*Result, error) {
	entities := make([]ir.Entity, len(results))
	keys := make([]ir.Value, len(results))
	for i, res := range results {
		props, err := m.dec.Properties(res.Entity.Properties)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		entities[i] = props
		keys[i] = ir.Null{}
		if res.Entity.Key != nil {
			k, err := wire.KeyToIR(res.Entity.Key)
			if err != nil {
				return nil, fmt.Errorf("entity %d key: %w", i, err)
			}
			keys[i] = k
		}
	}

	columns := selected
	if columns == nil {
		columns = unionColumns(entities)
	}

	out := &Result{Fields: make([]Field, len(columns)), Rows: make([]Row, len(entities))}
	for j, name := range columns {
		out.Fields[j] = Field{Name: name, Type: ir.TypeUnknown}
		if IsKeyName(name) {
			out.Fields[j].Name = KeyColumn
		}
	}

	for i, ent := range entities {
		row := make(Row, len(columns))
		for j, name := range columns {
			var v ir.Value
			if IsKeyName(name) {
				v = keys[i]
			} else if pv, ok := ent[name]; ok {
				v = pv
			} else {
				v = ir.Null{}
			}
			row[j] = v
			observe(&out.Fields[j], v)
		}
		out.Rows[i] = row
	}
	return out, nil
}

// unionColumns returns the key column followed by every property name, sorted.
func unionColumns(entities []ir.Entity) []string {
	seen := map[string]bool{}
	var names []string
	for _, ent := range entities {
		for name := range ent {
			if name == KeyColumn || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{KeyColumn}, names...)
}

// observe folds one value into a field descriptor.
func observe(f *Field, v ir.Value) {
	if ir.IsNull(v) {
		f.Nullable = true
		return
	}
	if f.Type == ir.TypeUnknown {
		f.Type = ir.TypeOf(v)
	}
}

// Describe builds field descriptors for rows produced outside Parse.
func Describe(names []string, rows []Row) []Field {
	fields := make([]Field, len(names))
	for j, name := range names {
		fields[j] = Field{Name: name, Type: ir.TypeUnknown}
	}
	for _, row := range rows {
		for j := range fields {
			if j < len(row) {
				observe(&fields[j], row[j])
			}
		}
	}
	return fields
}

// Project returns a result with only the named columns, in order. Key names
// resolve to the key column; unknown names yield Null columns.
func Project(r *Result, names []string) *Result {
	idx := make([]int, len(names))
	outNames := make([]string, len(names))
	for j, name := range names {
		idx[j] = r.Index(name)
		outNames[j] = name
		if IsKeyName(name) {
			outNames[j] = KeyColumn
		}
	}
	rows := make([]Row, len(r.Rows))
	for i, row := range r.Rows {
		out := make(Row, len(names))
		for j, k := range idx {
			if k < 0 {
				out[j] = ir.Null{}
				continue
			}
			out[j] = row[k]
		}
		rows[i] = out
	}
	fields := make([]Field, len(names))
	for j, k := range idx {
		if k < 0 {
			fields[j] = Field{Name: outNames[j], Type: ir.TypeUnknown, Nullable: true}
			continue
		}
		fields[j] = r.Fields[k]
		fields[j].Name = outNames[j]
	}
	return &Result{Fields: fields, Rows: rows}
}
