// Package query turns free-form request parameters into parametrized SQL.
// Every list-returning operation (listings, orders, reviews, categories) runs
// through a Builder: search, filters, sort, pagination, projection and the
// total-count metadata all compose from the same parameter mapping.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Defaults applied when page/limit are missing or malformed.
const (
	DefaultPage  = 1
	DefaultLimit = 8
)

// Reserved parameter keys consumed by builder stages rather than filters.
var reservedKeys = map[string]bool{
	"searchTerm": true,
	"sort":       true,
	"limit":      true,
	"page":       true,
	"fields":     true,
}

// FieldKind controls how a search term is interpreted against a field.
type FieldKind int

const (
	KindText FieldKind = iota
	KindNumeric
	KindIdentifier
	KindBoolean
)

// Column maps an external field name to a database column.
type Column struct {
	Name string
	Kind FieldKind
}

// Meta is the pagination metadata returned alongside list results.
type Meta struct {
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	TotalDoc  int64 `json:"totalDoc"`
	TotalPage int64 `json:"totalPage"`
}

// Builder assembles a SQL query from request parameters. Stages mutate and
// return the builder so callers chain them in any order before the terminal
// SelectSQL/CountSQL calls. Placeholders use '?', rebind for the driver at
// execution time.
type Builder struct {
	table      string
	columns    map[string]Column
	params     url.Values
	conds      []string
	args       []interface{}
	orderBy    string
	page       int
	limit      int
	paginated  bool
	projection []string
}

// New creates a builder for table. columns maps the externally addressable
// field names to their columns; parameters naming anything else are dropped,
// never interpolated. Internal row metadata is simply not mapped, so the
// default projection excludes it.
func New(table string, columns map[string]Column, params url.Values) *Builder {
	return &Builder{
		table:   table,
		columns: columns,
		params:  params,
		page:    DefaultPage,
		limit:   DefaultLimit,
	}
}

// Where adds a base condition that is always applied, e.g. scoping a listing
// query to one seller. args use '?' placeholders.
func (b *Builder) Where(cond string, args ...interface{}) *Builder {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
	return b
}

// Search builds a disjunctive match across fields from the searchTerm
// parameter. Numeric fields match by parsed equality, identifier fields by
// validated id equality, text fields by case-insensitive substring. A term
// that fails to parse for a field excludes that field from the OR-set; if no
// field survives, no search condition is applied.
func (b *Builder) Search(fields ...string) *Builder {
	term := b.params.Get("searchTerm")
	if term == "" {
		return b
	}

	var ors []string
	var args []interface{}
	for _, field := range fields {
		col, ok := b.columns[field]
		if !ok {
			continue
		}
		switch col.Kind {
		case KindNumeric:
			n, err := strconv.ParseInt(term, 10, 64)
			if err != nil {
				continue
			}
			ors = append(ors, col.Name+" = ?")
			args = append(args, n)
		case KindIdentifier:
			id, err := uuid.Parse(term)
			if err != nil {
				continue
			}
			ors = append(ors, col.Name+" = ?")
			args = append(args, id)
		default:
			ors = append(ors, col.Name+" ILIKE ?")
			args = append(args, "%"+term+"%")
		}
	}

	if len(ors) > 0 {
		b.conds = append(b.conds, "("+strings.Join(ors, " OR ")+")")
		b.args = append(b.args, args...)
	}
	return b
}

// Filter maps the remaining parameters to conditions: category (comma list of
// ids) to match-any, title to substring match, availability to the boolean
// availability column, minPrice/maxPrice to a single range, and any other
// mapped key to exact equality. Malformed values degrade to dropping that
// sub-condition.
func (b *Builder) Filter() *Builder {
	var minPrice, maxPrice *int64

	for key, values := range b.params {
		if reservedKeys[key] || len(values) == 0 {
			continue
		}
		value := values[0]

		switch key {
		case "category":
			b.filterCategory(value)
		case "title":
			if col, ok := b.columns["title"]; ok {
				b.conds = append(b.conds, col.Name+" ILIKE ?")
				b.args = append(b.args, "%"+value+"%")
			}
		case "availability":
			if col, ok := b.columns["availability"]; ok {
				b.conds = append(b.conds, col.Name+" = ?")
				b.args = append(b.args, value == "true")
			}
		case "minPrice":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				minPrice = &n
			}
		case "maxPrice":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				maxPrice = &n
			}
		default:
			col, ok := b.columns[key]
			if !ok {
				continue
			}
			b.conds = append(b.conds, col.Name+" = ?")
			b.args = append(b.args, value)
		}
	}

	if minPrice != nil || maxPrice != nil {
		if col, ok := b.columns["price"]; ok {
			if minPrice != nil {
				b.conds = append(b.conds, col.Name+" >= ?")
				b.args = append(b.args, *minPrice)
			}
			if maxPrice != nil {
				b.conds = append(b.conds, col.Name+" <= ?")
				b.args = append(b.args, *maxPrice)
			}
		}
	}
	return b
}

func (b *Builder) filterCategory(value string) {
	col, ok := b.columns["category"]
	if !ok {
		return
	}
	var ids []interface{}
	var holes []string
	for _, part := range strings.Split(value, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		ids = append(ids, id)
		holes = append(holes, "?")
	}
	if len(ids) == 0 {
		return
	}
	b.conds = append(b.conds, col.Name+" IN ("+strings.Join(holes, ", ")+")")
	b.args = append(b.args, ids...)
}

// Sort orders results by the comma-separated sort parameter, a leading '-'
// meaning descending. Unknown fields are skipped; default is newest first.
func (b *Builder) Sort() *Builder {
	var clauses []string
	for _, part := range strings.Split(b.params.Get("sort"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(part, "-") {
			dir = "DESC"
			part = part[1:]
		}
		col, ok := b.columns[part]
		if !ok {
			continue
		}
		clauses = append(clauses, col.Name+" "+dir)
	}
	if len(clauses) == 0 {
		clauses = []string{"created_at DESC"}
	}
	b.orderBy = strings.Join(clauses, ", ")
	return b
}

// Paginate computes the skip/take window from page (1-indexed, default 1) and
// limit (default 8). Non-numeric or non-positive values fall back to defaults.
func (b *Builder) Paginate() *Builder {
	b.page = positiveIntParam(b.params.Get("page"), DefaultPage)
	b.limit = positiveIntParam(b.params.Get("limit"), DefaultLimit)
	b.paginated = true
	return b
}

// Fields restricts the projection to the comma-separated fields parameter.
// Unknown fields are skipped; with no valid field every mapped column is
// selected.
func (b *Builder) Fields() *Builder {
	var cols []string
	for _, part := range strings.Split(b.params.Get("fields"), ",") {
		part = strings.TrimSpace(part)
		col, ok := b.columns[part]
		if !ok {
			continue
		}
		cols = append(cols, col.Name)
	}
	b.projection = cols
	return b
}

// SelectSQL materializes the assembled query with '?' placeholders.
func (b *Builder) SelectSQL() (string, []interface{}) {
	cols := "*"
	if len(b.projection) > 0 {
		cols = strings.Join(b.projection, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + b.table)
	sb.WriteString(b.whereClause())
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY " + b.orderBy)
	}
	if b.paginated {
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", b.limit, (b.page-1)*b.limit)
	}
	return sb.String(), append([]interface{}(nil), b.args...)
}

// CountSQL materializes a count over the filtered, pre-pagination condition
// set.
func (b *Builder) CountSQL() (string, []interface{}) {
	return "SELECT COUNT(*) FROM " + b.table + b.whereClause(),
		append([]interface{}(nil), b.args...)
}

// Meta builds the pagination metadata for a total produced by CountSQL.
func (b *Builder) Meta(totalDoc int64) Meta {
	limit := int64(b.limit)
	return Meta{
		Page:      b.page,
		Limit:     b.limit,
		TotalDoc:  totalDoc,
		TotalPage: (totalDoc + limit - 1) / limit,
	}
}

func (b *Builder) whereClause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func positiveIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
