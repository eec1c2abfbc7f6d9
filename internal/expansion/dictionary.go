package expansion

import (
	"strings"

	"applyflow/pkg/models"
)

// Entry is a pre-authored expansion for a seed term.
type Entry struct {
	Includes []string
	Excludes []string
	Related  []string
	Boosts   []string
}

// Matcher resolves a normalized query against domain knowledge. Implementations
// must be deterministic: the same query always yields the same entry.
type Matcher interface {
	// Match returns the entry for the longest seed term contained in the
	// query. ok is false when no seed term matches.
	Match(query string) (entry Entry, seed string, ok bool)
}

// MapMatcher is a flat associative seed-term dictionary. Lookup scans all
// seeds and keeps the longest one contained in the query; length ties keep
// the lexicographically smaller seed so results stay stable.
type MapMatcher struct {
	entries map[string]Entry
}

// NewMapMatcher builds a matcher over the given entries. Seeds are stored
// lowercased.
func NewMapMatcher(entries map[string]Entry) *MapMatcher {
	m := make(map[string]Entry, len(entries))
	for seed, entry := range entries {
		m[strings.ToLower(seed)] = entry
	}
	return &MapMatcher{entries: m}
}

// Match implements Matcher.
func (m *MapMatcher) Match(query string) (Entry, string, bool) {
	normalized := models.NormalizeQuery(query)

	var best string
	var bestEntry Entry
	for seed, entry := range m.entries {
		if !strings.Contains(normalized, seed) {
			continue
		}
		if len(seed) > len(best) || (len(seed) == len(best) && seed < best) {
			best = seed
			bestEntry = entry
		}
	}

	if best == "" {
		return Entry{}, "", false
	}
	return bestEntry, best, true
}

// DefaultDictionary returns the built-in relevance dictionary. Exclude terms
// are matched on word boundaries downstream, so "java" disqualifies "Java
// Backend Engineer" without touching "JavaScript".
func DefaultDictionary() *MapMatcher {
	return NewMapMatcher(map[string]Entry{
		"react developer": {
			Includes: []string{"react", "frontend", "javascript"},
			Excludes: []string{"java", "php", "wordpress"},
			Related:  []string{"typescript", "next.js", "redux"},
			Boosts:   []string{"react", "frontend", "javascript"},
		},
		"frontend developer": {
			Includes: []string{"frontend", "javascript", "css"},
			Excludes: []string{"devops", "embedded"},
			Related:  []string{"react", "vue", "angular"},
			Boosts:   []string{"frontend", "javascript", "react"},
		},
		"backend developer": {
			Includes: []string{"backend", "api", "server"},
			Excludes: []string{"wordpress"},
			Related:  []string{"microservices", "rest", "sql"},
			Boosts:   []string{"backend", "api"},
		},
		"java developer": {
			Includes: []string{"java", "spring", "backend"},
			Excludes: []string{"react", "wordpress"},
			Related:  []string{"spring boot", "hibernate", "microservices"},
			Boosts:   []string{"java", "spring", "backend"},
		},
		"python developer": {
			Includes: []string{"python", "django", "backend"},
			Excludes: []string{"php", "wordpress"},
			Related:  []string{"flask", "fastapi", "data"},
			Boosts:   []string{"python", "django"},
		},
		"fullstack developer": {
			Includes: []string{"fullstack", "frontend", "backend"},
			Excludes: []string{"intern"},
			Related:  []string{"javascript", "react", "node"},
			Boosts:   []string{"fullstack", "javascript"},
		},
		"mobile developer": {
			Includes: []string{"mobile", "android", "ios"},
			Excludes: []string{"wordpress"},
			Related:  []string{"flutter", "react native", "kotlin"},
			Boosts:   []string{"mobile", "flutter", "android"},
		},
		"data analyst": {
			Includes: []string{"data", "analyst", "excel"},
			Excludes: []string{"driver", "sales representative"},
			Related:  []string{"sql", "power bi", "tableau"},
			Boosts:   []string{"data analyst", "sql", "excel"},
		},
		"devops engineer": {
			Includes: []string{"devops", "cloud", "infrastructure"},
			Excludes: []string{"wordpress"},
			Related:  []string{"aws", "docker", "kubernetes"},
			Boosts:   []string{"devops", "aws", "kubernetes"},
		},
		"accountant": {
			Includes: []string{"accountant", "accounting", "finance"},
			Excludes: []string{"driver", "cleaner"},
			Related:  []string{"bookkeeping", "audit", "tax"},
			Boosts:   []string{"accountant", "accounting", "audit"},
		},
		"customer service": {
			Includes: []string{"customer service", "support", "customer"},
			Excludes: []string{"driver"},
			Related:  []string{"call center", "client relations", "crm"},
			Boosts:   []string{"customer service", "support"},
		},
		"sales representative": {
			Includes: []string{"sales", "marketing", "business development"},
			Excludes: []string{"engineer", "developer"},
			Related:  []string{"lead generation", "negotiation", "crm"},
			Boosts:   []string{"sales", "business development"},
		},
		"digital marketer": {
			Includes: []string{"marketing", "digital", "social media"},
			Excludes: []string{"driver", "accountant"},
			Related:  []string{"seo", "content", "advertising"},
			Boosts:   []string{"digital marketing", "social media", "seo"},
		},
		"graphic designer": {
			Includes: []string{"design", "graphic", "creative"},
			Excludes: []string{"developer", "accountant"},
			Related:  []string{"photoshop", "illustrator", "branding"},
			Boosts:   []string{"graphic designer", "design"},
		},
		"project manager": {
			Includes: []string{"project manager", "project", "management"},
			Excludes: []string{"intern"},
			Related:  []string{"agile", "scrum", "stakeholder"},
			Boosts:   []string{"project manager", "agile"},
		},
		"nurse": {
			Includes: []string{"nurse", "nursing", "healthcare"},
			Excludes: []string{"driver", "sales"},
			Related:  []string{"clinical", "patient care", "hospital"},
			Boosts:   []string{"nurse", "nursing"},
		},
		"driver": {
			Includes: []string{"driver", "driving", "logistics"},
			Excludes: []string{"developer", "engineer"},
			Related:  []string{"delivery", "dispatch", "fleet"},
			Boosts:   []string{"driver", "delivery"},
		},
	})
}
