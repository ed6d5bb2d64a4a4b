package assessment

import "strings"

// Section is one normalized area of the source-code review.
type Section struct {
	Score           int      `json:"score"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

type CodeAnalysis struct {
	OverallScore    int      `json:"overallScore"`
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`

	Security        Section `json:"security"`
	Performance     Section `json:"performance"`
	Accessibility   Section `json:"accessibility"`
	Maintainability Section `json:"maintainability"`
	SEO             Section `json:"seo"`
}

// Names a model has been seen to use for each section, compared lowercased.
var sectionAliases = map[string][]string{
	"security":        {"security", "securityanalysis", "securityreview", "vulnerabilities"},
	"performance":     {"performance", "performanceanalysis", "codeperformance"},
	"accessibility":   {"accessibility", "accessibilityanalysis", "a11y"},
	"maintainability": {"maintainability", "maintainabilityanalysis", "codequality", "quality"},
	"seo":             {"seo", "technicalseo", "seoanalysis", "codeseo"},
}

var (
	scoreAliases          = []string{"score", "rating", "value"}
	issueAliases          = []string{"issues", "findings", "problems"}
	recommendationAliases = []string{"recommendations", "suggestions", "fixes"}
)

// NormalizeCodeAnalysis coerces whatever shape the model produced into a
// CodeAnalysis. Missing sections get FallbackScore and empty lists.
func NormalizeCodeAnalysis(raw map[string]any) CodeAnalysis {
	top := lowerKeys(raw)
	scopes := []map[string]any{top}
	for _, k := range []string{"sections", "categories"} {
		if nested, ok := top[k].(map[string]any); ok {
			scopes = append(scopes, lowerKeys(nested))
		}
	}

	section := func(name string) Section {
		for _, scope := range scopes {
			for _, alias := range sectionAliases[name] {
				if v, ok := scope[alias]; ok && v != nil {
					return normalizeSection(v)
				}
			}
		}
		return Section{Score: FallbackScore, Issues: []string{}, Recommendations: []string{}}
	}

	return CodeAnalysis{
		OverallScore:    Score(firstOf(top, "overallscore", "score")),
		Summary:         Text(top["summary"]),
		Strengths:       Strings(top["strengths"]),
		Weaknesses:      Strings(top["weaknesses"]),
		Recommendations: Strings(firstOf(top, recommendationAliases...)),
		Security:        section("security"),
		Performance:     section("performance"),
		Accessibility:   section("accessibility"),
		Maintainability: section("maintainability"),
		SEO:             section("seo"),
	}
}

// normalizeSection accepts a bare score or an object using any known field names.
func normalizeSection(v any) Section {
	m, ok := v.(map[string]any)
	if !ok {
		return Section{Score: Score(v), Issues: []string{}, Recommendations: []string{}}
	}
	m = lowerKeys(m)
	return Section{
		Score:           Score(firstOf(m, scoreAliases...)),
		Issues:          Strings(firstOf(m, issueAliases...)),
		Recommendations: Strings(firstOf(m, recommendationAliases...)),
	}
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lk := strings.ToLower(k)
		if _, dup := out[lk]; !dup {
			out[lk] = v
		}
	}
	return out
}
