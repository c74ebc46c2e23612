package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField is one ORDER BY column, named by its projected view name.
type SortField struct {
	Field      string
	Descending bool
}

// Builder assembles SELECT statements over a ProjectionMap. Placeholders
// are numbered as conditions are added, so args always line up with the
// SQL text.
type Builder struct {
	projection  *ProjectionMap
	where       []string
	args        []any
	orderBy     []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder for the given projection with optional default sort fields.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// ParseSortFields parses "name,-createdAt" into sort fields; a leading "-"
// sorts descending. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Build returns the filtered, ordered SELECT.
func (b *Builder) Build() (string, []any) {
	return b.selectSQL() + b.whereSQL() + b.orderSQL(), b.args
}

// BuildCount returns a COUNT(*) over the same filters.
func (b *Builder) BuildCount() (string, []any) {
	return "SELECT COUNT(*) FROM " + b.projection.From() + b.whereSQL(), b.args
}

// BuildPage returns Build with LIMIT and OFFSET applied.
func (b *Builder) BuildPage(limit, offset int) (string, []any) {
	sql, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, limit, offset), args
}

// BuildSingle selects one row by idField, ignoring any added conditions.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return fmt.Sprintf("%s WHERE %s = $1", b.selectSQL(), b.projection.Column(idField)), []any{id}
}

// OrderByFields replaces the default sort. Fields the projection does not
// map are dropped, so client sort keys never reach the SQL text.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.orderBy = b.orderBy[:0]
	for _, f := range fields {
		if b.projection.Has(f.Field) {
			b.orderBy = append(b.orderBy, f)
		}
	}
	return b
}

// WhereEquals adds field = value. Nil values are ignored.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	return b.add(b.projection.Column(field)+" = ?", value)
}

// WhereContains adds a case-insensitive substring match. Empty values are ignored.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.add(b.projection.Column(field)+" ILIKE ?", likePattern(*value))
}

// WhereIn adds field IN (...). An empty list is ignored.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return b.add(fmt.Sprintf("%s IN (%s)", b.projection.Column(field), marks), values...)
}

// WhereRange adds inclusive bounds; a nil bound is skipped.
func (b *Builder) WhereRange(field string, from, to any) *Builder {
	col := b.projection.Column(field)
	if !isNil(from) {
		b.add(col+" >= ?", from)
	}
	if !isNil(to) {
		b.add(col+" <= ?", to)
	}
	return b
}

// WhereNull adds IS NULL when *isNull is true and IS NOT NULL when false.
// A nil flag is ignored.
func (b *Builder) WhereNull(field string, isNull *bool) *Builder {
	if isNull == nil {
		return b
	}
	op := " IS NOT NULL"
	if *isNull {
		op = " IS NULL"
	}
	return b.add(b.projection.Column(field) + op)
}

// WhereSearch matches search as a substring of any of fields.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	pattern := likePattern(*search)
	clauses := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		clauses[i] = b.projection.Column(field) + " ILIKE ?"
		args[i] = pattern
	}
	return b.add("("+strings.Join(clauses, " OR ")+")", args...)
}

// add appends a condition whose "?" marks are replaced by numbered
// placeholders continuing from the arguments already bound.
func (b *Builder) add(clause string, args ...any) *Builder {
	var sb strings.Builder
	n := len(b.args)
	for _, r := range clause {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	b.where = append(b.where, sb.String())
	b.args = append(b.args, args...)
	return b
}

func (b *Builder) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", b.projection.Columns(), b.projection.From())
}

func (b *Builder) whereSQL() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) orderSQL() string {
	fields := b.orderBy
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		dir := " ASC"
		if f.Descending {
			dir = " DESC"
		}
		parts[i] = b.projection.Column(f.Field) + dir
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// likePattern wraps s in % after escaping the LIKE metacharacters, so a
// search for "50%" matches the literal text.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
