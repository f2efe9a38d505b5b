package querygql

import (
	"fmt"
	"strings"

	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
)

// KeyProperty is the store's reserved key pseudo-column.
const KeyProperty = "__key__"

// rowNumberAlias is the column name front ends use when lowering DISTINCT ON
// to a ROW_NUMBER() window.
const rowNumberAlias = "_row_number"

// Translation is the result of translating one SELECT.
//
// GQL is the native query text. When NeedsFallback is set, the native text
// contains constructs the remote executor does not reliably accept and
// BaseQuery must be used instead, with Spec evaluated locally. Degraded
// reports that a filtered projection query was widened to SELECT *; Output
// then names the columns to re-project after materialization.
type Translation struct {
	GQL           string
	NeedsFallback bool
	BaseQuery     string
	Spec          queryir.Spec
	Degraded      bool
	Output        []string
	Warnings      []string
}

// Translator rewrites parsed SELECT statements into native GQL.
//
// Translation is deterministic and idempotent: translating the GQL output
// again yields the same text.
type Translator struct{}

// NewTranslator creates a new Translator.
func NewTranslator() *Translator {
	return &Translator{}
}

// Translate converts a parsed SELECT into native GQL.
func (t *Translator) Translate(sel *queryir.Select) (*Translation, error) {
	if sel == nil {
		return nil, fmt.Errorf("cannot translate nil select")
	}
	if sel.Kind == "" {
		return nil, fmt.Errorf("select has no kind")
	}

	// The window artifact and a collapsed WHERE NULL are removed from the
	// predicate used for local evaluation as well as from the native text.
	where, stripped := stripRowNumberFilter(sel.Where, rowNumberNames(sel))
	if isCollapsedNull(where) {
		where = nil
	}
	predicateText := sel.WhereText
	if stripped || len(where) == 0 {
		predicateText = renderWhere(where)
	}

	filter := rewriteWhere(where, sel.Kind)

	tr := &Translation{
		BaseQuery: "SELECT * FROM " + quoteIdent(sel.Kind),
	}
	spec := queryir.Spec{
		Kind:     sel.Kind,
		Filter:   filter,
		Limit:    sel.Limit,
		Offset:   sel.Offset,
		Distinct: sel.Distinct,
	}
	if predicateText != "" {
		spec.Predicate = statement.ParsePredicate(predicateText)
	}
	for _, o := range sel.OrderBy {
		spec.OrderBy = append(spec.OrderBy, queryir.Order{Field: keyName(o.Field), Descending: o.Descending})
	}
	for _, name := range sel.DistinctOn {
		spec.DistinctOn = appendUnique(spec.DistinctOn, keyName(name))
	}

	projection, err := projectionOf(sel)
	if err != nil {
		return nil, err
	}
	tr.Output = projection
	spec.Projection = projection
	if len(projection) > 0 && onlyKey(projection) {
		spec.Projection = []string{KeyProperty}
	} else if len(projection) > 0 && len(filter) > 0 {
		spec.Projection = nil
		tr.Degraded = true
	}

	// Conditions the local reader cannot parse may still be native GQL, so
	// only OR and binary literals force the local path.
	if hasFallbackConstruct(filter) {
		tr.NeedsFallback = true
		tr.Warnings = queryir.Validate(spec.Predicate).Warnings
	}
	if tr.Degraded && (spec.Distinct || len(spec.DistinctOn) > 0) {
		// DISTINCT cannot be applied remotely to a widened projection.
		tr.NeedsFallback = true
		tr.Warnings = append(tr.Warnings, "DISTINCT over a filtered projection requires local evaluation")
	}

	tr.Spec = spec
	tr.GQL = Render(spec)
	return tr, nil
}

// Render writes a spec as native GQL text.
func Render(spec queryir.Spec) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(spec.DistinctOn) > 0 {
		b.WriteString("DISTINCT ON (")
		b.WriteString(joinIdents(spec.DistinctOn))
		b.WriteString(") ")
	} else if spec.Distinct && len(spec.Projection) > 0 {
		b.WriteString("DISTINCT ")
	}
	if len(spec.Projection) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(joinIdents(spec.Projection))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(spec.Kind))

	if len(spec.Filter) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(statement.Render(spec.Filter))
	}
	if len(spec.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range spec.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(o.Field))
			if o.Descending {
				b.WriteString(" DESC")
			}
		}
	}
	if spec.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *spec.Limit)
	}
	if spec.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", spec.Offset)
	}
	return b.String()
}

// projectionOf returns the property names of an explicit SELECT list, with
// the key column mapped to __key__ and window artifacts removed. It returns
// nil for SELECT *.
func projectionOf(sel *queryir.Select) ([]string, error) {
	if sel.Star {
		return nil, nil
	}
	var names []string
	for _, col := range sel.Columns {
		if isRowNumberColumn(col) {
			continue
		}
		if col.Name == "" {
			return nil, fmt.Errorf("computed column %q requires a derived table", statement.Render(col.Expr))
		}
		names = appendUnique(names, keyName(col.Name))
	}
	return names, nil
}

func isRowNumberColumn(col queryir.Column) bool {
	for i, t := range col.Expr {
		if t.Kind == queryir.TokenIdent && strings.EqualFold(t.Text, "ROW_NUMBER") && i+1 < len(col.Expr) && col.Expr[i+1].Is("(") {
			return true
		}
	}
	return false
}

// rowNumberNames returns the column names that refer to window artifacts.
func rowNumberNames(sel *queryir.Select) map[string]bool {
	names := map[string]bool{rowNumberAlias: true}
	for _, col := range sel.Columns {
		if isRowNumberColumn(col) && col.Alias != "" {
			names[col.Alias] = true
		}
	}
	return names
}

// stripRowNumberFilter removes top-level "<window column> = 1" conjuncts.
func stripRowNumberFilter(where []queryir.Token, names map[string]bool) ([]queryir.Token, bool) {
	if len(where) == 0 || hasTopLevel(where, "OR") {
		return where, false
	}
	var kept [][]queryir.Token
	stripped := false
	for _, part := range splitTopLevel(where, "AND") {
		if isRowNumberFilter(part, names) {
			stripped = true
			continue
		}
		kept = append(kept, part)
	}
	if !stripped {
		return where, false
	}
	var out []queryir.Token
	for i, part := range kept {
		if i > 0 {
			out = append(out, statement.Keyword("AND"))
		}
		out = append(out, part...)
	}
	return out, true
}

func isRowNumberFilter(part []queryir.Token, names map[string]bool) bool {
	// Optional qualifier: t._row_number = 1
	if len(part) == 5 && part[1].Is(".") {
		part = part[2:]
	}
	return len(part) == 3 &&
		part[0].Kind == queryir.TokenIdent && names[part[0].Text] &&
		part[1].Is("=") &&
		part[2].Kind == queryir.TokenNumber && part[2].Text == "1"
}

func isCollapsedNull(where []queryir.Token) bool {
	for len(where) >= 3 && where[0].Is("(") && where[len(where)-1].Is(")") {
		where = where[1 : len(where)-1]
	}
	return len(where) == 1 && where[0].Is("NULL")
}

func renderWhere(where []queryir.Token) string {
	if len(where) == 0 {
		return ""
	}
	return statement.Render(where)
}

// hasFallbackConstruct reports whether rewritten WHERE tokens contain an OR or
// a binary literal.
func hasFallbackConstruct(filter []queryir.Token) bool {
	for i, t := range filter {
		if t.Is("OR") {
			return true
		}
		if t.Kind == queryir.TokenIdent && t.Quote == 0 && strings.EqualFold(t.Text, "BLOB") && i+1 < len(filter) && filter[i+1].Is("(") {
			return true
		}
	}
	return false
}

func keyName(name string) string {
	if name == "id" {
		return KeyProperty
	}
	return name
}

func onlyKey(names []string) bool {
	for _, n := range names {
		if n != KeyProperty {
			return false
		}
	}
	return true
}

func appendUnique(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// quoteIdent backtick-quotes names that are not plain identifiers or that
// collide with a keyword.
func quoteIdent(name string) string {
	if isPlainIdent(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func isPlainIdent(name string) bool {
	if name == "" {
		return false
	}
	toks, err := statement.Lex(name)
	return err == nil && len(toks) == 1 && toks[0].Kind == queryir.TokenIdent && toks[0].Quote == 0
}
