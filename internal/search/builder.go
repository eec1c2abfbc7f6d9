package search

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"applyflow/pkg/models"
)

// minIncludeMatches is the interactive relevance bar: a posting must match at
// least min(2, |must_include|) of the include terms.
const minIncludeMatches = 2

// textColumns are the fields an include term may match against.
var textColumns = []string{"title", "description", "requirements", "category", "experience"}

// excludeColumns are the fields a single exclude hit disqualifies on.
var excludeColumns = []string{"title", "description", "requirements"}

// Builder assembles a ranked corpus query from a structured filter. Inclusion
// uses substring containment; exclusion uses word-boundary regexes so "java"
// disqualifies "Java Backend Engineer" but not "JavaScript".
type Builder struct {
	filter      *models.StructuredFilter
	location    string
	ownerUnseen string
	since       *time.Time
	limit       int
	args        []any
}

// NewBuilder creates a query builder for the given filter.
func NewBuilder(filter *models.StructuredFilter) *Builder {
	return &Builder{filter: filter}
}

// WithLocation constrains results to a physical location, or to remote
// postings when the location is "remote". An empty location imposes no
// constraint.
func (b *Builder) WithLocation(location string) *Builder {
	b.location = strings.TrimSpace(location)
	return b
}

// WithUnseenFor restricts results to postings updated after since and not yet
// applied to by the owner. Used by the auto-apply sweep.
func (b *Builder) WithUnseenFor(ownerID string, since time.Time) *Builder {
	b.ownerUnseen = ownerID
	b.since = &since
	return b
}

// WithLimit caps the number of returned postings.
func (b *Builder) WithLimit(limit int) *Builder {
	b.limit = limit
	return b
}

// Build renders the SQL statement and its positional arguments.
func (b *Builder) Build() (string, []any) {
	b.args = b.args[:0]

	var where []string

	// Freshness: only postings with no expiry or a future expiry.
	where = append(where, "(expires_at IS NULL OR expires_at > NOW())")

	if clause := b.inclusionClause(); clause != "" {
		where = append(where, clause)
	}

	for _, term := range b.filter.MustExclude {
		where = append(where, b.exclusionClause(term))
	}

	if b.location != "" {
		if strings.EqualFold(b.location, "remote") {
			where = append(where, "is_remote = TRUE")
		} else {
			where = append(where, fmt.Sprintf("location ILIKE %s", b.arg(contains(b.location))))
		}
	}

	if b.since != nil {
		where = append(where, fmt.Sprintf("last_updated > %s", b.arg(*b.since)))
		where = append(where, fmt.Sprintf(
			"NOT EXISTS (SELECT 1 FROM applications a WHERE a.owner_id = %s AND a.posting_id = postings.id)",
			b.arg(b.ownerUnseen)))
	}

	sql := `SELECT id, title, description, requirements, category, experience, location,
	is_remote, salary, company, email, expires_at, last_updated, scraped_at
FROM postings
WHERE ` + strings.Join(where, "\n  AND ")

	sql += "\nORDER BY " + b.orderClause()

	if b.limit > 0 {
		sql += fmt.Sprintf("\nLIMIT %s", b.arg(b.limit))
	}

	return sql, b.args
}

// inclusionClause requires min(2, n) of the include terms to match across the
// text columns. An empty must_include omits the clause entirely so pure
// location or category queries match broadly.
func (b *Builder) inclusionClause() string {
	terms := b.filter.MustInclude
	if len(terms) == 0 {
		return ""
	}

	required := minIncludeMatches
	if len(terms) < required {
		required = len(terms)
	}

	var cases []string
	for _, term := range terms {
		placeholder := b.arg(contains(term))
		var fields []string
		for _, col := range textColumns {
			fields = append(fields, fmt.Sprintf("%s ILIKE %s", col, placeholder))
		}
		cases = append(cases, fmt.Sprintf("(CASE WHEN (%s) THEN 1 ELSE 0 END)", strings.Join(fields, " OR ")))
	}

	return fmt.Sprintf("(%s) >= %d", strings.Join(cases, " + "), required)
}

// exclusionClause disqualifies any posting carrying the term. Strict: no
// threshold, one hit anywhere is enough.
func (b *Builder) exclusionClause(term string) string {
	placeholder := b.arg(wordPattern(term))
	var fields []string
	for _, col := range excludeColumns {
		fields = append(fields, fmt.Sprintf("%s ~* %s", col, placeholder))
	}
	return fmt.Sprintf("NOT (%s)", strings.Join(fields, " OR "))
}

// orderClause ranks by boost-term hits in the title, the first listed term
// carrying maximum weight, then by recency.
func (b *Builder) orderClause() string {
	boosts := b.filter.BoostTerms
	if len(boosts) == 0 {
		return "last_updated DESC"
	}

	var cases []string
	for i, term := range boosts {
		weight := len(boosts) - i
		cases = append(cases, fmt.Sprintf("(CASE WHEN title ILIKE %s THEN %d ELSE 0 END)", b.arg(contains(term)), weight))
	}

	return fmt.Sprintf("(%s) DESC, last_updated DESC", strings.Join(cases, " + "))
}

func (b *Builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func contains(term string) string {
	return "%" + strings.TrimSpace(term) + "%"
}

// wordPattern builds a case-insensitive word-boundary regex for the Postgres
// ~* operator.
func wordPattern(term string) string {
	return `\m` + regexp.QuoteMeta(strings.TrimSpace(term)) + `\M`
}
