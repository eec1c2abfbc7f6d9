// Package scoring computes ATS compatibility scores for applications. The
// primary path delegates to the AI provider; a deterministic rule-based
// fallback keeps scoring available when the provider is slow, down or returns
// a malformed payload.
package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// Keyword families scanned against posting text. Each regex matches on word
// boundaries so "java" does not hit "javascript".
var keywordFamilies = map[string]*regexp.Regexp{
	// technical skills
	"python":     regexp.MustCompile(`(?i)\bpython\b`),
	"java":       regexp.MustCompile(`(?i)\bjava\b`),
	"javascript": regexp.MustCompile(`(?i)\bjavascript\b|\bnode\.?js\b|\breact\b|\bvue\b|\bangular\b`),
	"php":        regexp.MustCompile(`(?i)\bphp\b|\blaravel\b`),
	"sql":        regexp.MustCompile(`(?i)\bsql\b|\bmysql\b|\bpostgres(?:ql)?\b|\bdatabase\b`),
	"cloud":      regexp.MustCompile(`(?i)\baws\b|\bazure\b|\bgcp\b|\bcloud\b|\bdocker\b|\bkubernetes\b`),
	"networking": regexp.MustCompile(`(?i)\bnetwork(?:ing)?\b|\bcisco\b|\bfirewall\b`),
	"data":       regexp.MustCompile(`(?i)\bdata analysis\b|\bpower\s?bi\b|\btableau\b|\bmachine learning\b`),

	// finance and accounting
	"accounting": regexp.MustCompile(`(?i)\baccounting\b|\baccountant\b|\bbookkeep(?:ing|er)\b`),
	"audit":      regexp.MustCompile(`(?i)\baudit(?:ing|or)?\b|\btax(?:ation)?\b`),
	"finance":    regexp.MustCompile(`(?i)\bfinanc(?:e|ial)\b|\bbudget(?:ing)?\b|\bpayroll\b`),
	"erp":        regexp.MustCompile(`(?i)\bquickbooks\b|\bsage\b|\bsap\b|\berp\b`),

	// sales and marketing
	"sales":      regexp.MustCompile(`(?i)\bsales\b|\bbusiness development\b|\blead generation\b`),
	"marketing":  regexp.MustCompile(`(?i)\bmarketing\b|\bbrand(?:ing)?\b|\bcampaign(?:s)?\b`),
	"digital":    regexp.MustCompile(`(?i)\bseo\b|\bsocial media\b|\bcontent creation\b|\bgoogle ads\b`),
	"customer":   regexp.MustCompile(`(?i)\bcustomer (?:service|relations|support)\b|\bcrm\b`),

	// office tools
	"excel":      regexp.MustCompile(`(?i)\bexcel\b|\bspreadsheets?\b|\bpivot tables?\b`),
	"word":       regexp.MustCompile(`(?i)\bmicrosoft (?:word|office)\b|\bms office\b`),
	"powerpoint": regexp.MustCompile(`(?i)\bpowerpoint\b|\bpresentations?\b`),
	"admin":      regexp.MustCompile(`(?i)\badministrat(?:ion|ive)\b|\boffice management\b|\bscheduling\b`),
}

var (
	postingYearsRe = regexp.MustCompile(`(\d+)\s*(?:\+|to|-)\s*(\d+)?\s*years?`)
	profileYearsRe = regexp.MustCompile(`(\d+)\s*(?:\+)?\s*years?\s*(?:of\s*)?experience`)
)

// FallbackScorer is the deterministic rule-based scorer. Same inputs always
// produce the same sub-scores.
type FallbackScorer struct{}

// NewFallbackScorer constructs a FallbackScorer.
func NewFallbackScorer() *FallbackScorer {
	return &FallbackScorer{}
}

// Score computes the rule-based ATS breakdown for a profile against a posting.
func (f *FallbackScorer) Score(profileText string, posting *models.Posting) *models.ATSScore {
	postingText := posting.Title + " " + posting.Description + " " + posting.Requirements

	matched, missing := matchKeywords(profileText, postingText)
	skills := skillScore(matched, missing)
	experience := experienceScore(profileText, posting.Experience)
	education := educationScore(profileText)

	overall := utils.Clamp(int(math.Round(0.4*float64(skills)+0.35*float64(experience)+0.25*float64(education))), 0, 100)

	score := &models.ATSScore{
		Overall:         overall,
		SkillsScore:     skills,
		ExperienceScore: experience,
		EducationScore:  education,
		MatchedKeywords: matched,
		MissingKeywords: missing,
	}
	score.Strengths, score.Weaknesses, score.Recommendations = narratives(skills, experience, education, len(missing))
	return score
}

// matchKeywords partitions the keyword families the posting asks for into
// those present in the profile and those absent from it.
func matchKeywords(profileText, postingText string) (matched, missing []string) {
	for _, family := range keywordOrder {
		re := keywordFamilies[family]
		if !re.MatchString(postingText) {
			continue
		}
		if re.MatchString(profileText) {
			matched = append(matched, family)
		} else {
			missing = append(missing, family)
		}
	}
	return matched, missing
}

// keywordOrder fixes iteration order so results are deterministic.
var keywordOrder = []string{
	"python", "java", "javascript", "php", "sql", "cloud", "networking", "data",
	"accounting", "audit", "finance", "erp",
	"sales", "marketing", "digital", "customer",
	"excel", "word", "powerpoint", "admin",
}

func skillScore(matched, missing []string) int {
	total := len(matched) + len(missing)
	if total == 0 {
		return 50
	}
	return utils.Clamp(int(math.Round(100*float64(len(matched))/float64(total))), 0, 100)
}

// experienceScore compares the posting's minimum-years requirement against
// the candidate's stated years. A posting with no parseable requirement
// defaults to 75.
func experienceScore(profileText, postingExperience string) int {
	required := parsePostingYears(postingExperience)
	if required <= 0 {
		return 75
	}

	candidate := parseProfileYears(profileText)
	switch {
	case candidate >= required:
		return 100
	case float64(candidate) >= 0.7*float64(required):
		return 75
	case float64(candidate) >= 0.5*float64(required):
		return 50
	default:
		return 30
	}
}

func parsePostingYears(text string) int {
	m := postingYearsRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0
	}
	years, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return years
}

func parseProfileYears(text string) int {
	m := profileYearsRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0
	}
	years, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return years
}

// educationScore walks a fixed ladder from the highest qualification mentioned
// in the profile down to a floor of 40.
func educationScore(profileText string) int {
	text := strings.ToLower(profileText)
	switch {
	case strings.Contains(text, "phd") || strings.Contains(text, "doctorate") || strings.Contains(text, "ph.d"):
		return 100
	case strings.Contains(text, "master") || strings.Contains(text, "msc") || strings.Contains(text, "mba"):
		return 90
	case strings.Contains(text, "bachelor") || strings.Contains(text, "bsc") || strings.Contains(text, "b.sc") || strings.Contains(text, "degree"):
		return 80
	case strings.Contains(text, "diploma") || strings.Contains(text, "hnd") || strings.Contains(text, "ond"):
		return 70
	case strings.Contains(text, "university") || strings.Contains(text, "college") || strings.Contains(text, "polytechnic"):
		return 60
	default:
		return 40
	}
}

// narratives derives recruiter-facing strengths, weaknesses and
// recommendations from sub-score thresholds.
func narratives(skills, experience, education, missingCount int) (strengths, weaknesses, recommendations []string) {
	if skills >= 70 {
		strengths = append(strengths, "Strong keyword alignment with the role's stated requirements")
	} else if skills < 40 {
		weaknesses = append(weaknesses, "Profile covers few of the skills the posting asks for")
		recommendations = append(recommendations, "Add the role's key skills to your profile where you genuinely have them")
	}

	if experience >= 100 {
		strengths = append(strengths, "Meets or exceeds the required years of experience")
	} else if experience <= 50 {
		weaknesses = append(weaknesses, "Stated experience falls short of the posting's requirement")
		recommendations = append(recommendations, "Highlight relevant project work to offset the experience gap")
	}

	if education >= 80 {
		strengths = append(strengths, "Educational qualifications match the typical bar for this role")
	} else if education <= 60 {
		recommendations = append(recommendations, "List certifications or training relevant to the role")
	}

	if missingCount > 3 {
		weaknesses = append(weaknesses, "Several requirement areas are not reflected in the profile")
	}

	return strengths, weaknesses, recommendations
}
