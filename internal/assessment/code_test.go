package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCodeAnalysis_MissingSecurity(t *testing.T) {
	ca := NormalizeCodeAnalysis(map[string]any{
		"overallScore": 70.0,
		"performance":  map[string]any{"score": 60.0, "issues": []any{"big bundle"}},
	})

	assert.Equal(t, Section{Score: 50, Issues: []string{}, Recommendations: []string{}}, ca.Security)
	assert.Equal(t, Section{Score: 60, Issues: []string{"big bundle"}, Recommendations: []string{}}, ca.Performance)
	assert.Equal(t, []string{}, ca.Strengths)
	assert.Equal(t, []string{}, ca.Recommendations)
}

func TestNormalizeCodeAnalysis_AliasesAndNesting(t *testing.T) {
	ca := NormalizeCodeAnalysis(map[string]any{
		"score": "88",
		"sections": map[string]any{
			"SecurityAnalysis": map[string]any{
				"rating":      "n/a",
				"findings":    []any{"exposed key", map[string]any{"x": 1.0}},
				"suggestions": []any{"rotate key"},
			},
			"technicalSeo": 35.0,
		},
		"codeQuality": map[string]any{"Score": 120.0, "issues": "not a list"},
	})

	assert.Equal(t, 88, ca.OverallScore)
	assert.Equal(t, Section{Score: 50, Issues: []string{"exposed key"}, Recommendations: []string{"rotate key"}}, ca.Security)
	assert.Equal(t, Section{Score: 35, Issues: []string{}, Recommendations: []string{}}, ca.SEO)
	assert.Equal(t, Section{Score: 100, Issues: []string{}, Recommendations: []string{}}, ca.Maintainability)
	assert.Equal(t, 50, ca.Accessibility.Score)
}

func TestNormalizeCodeAnalysis_TopLevelWinsOverNested(t *testing.T) {
	ca := NormalizeCodeAnalysis(map[string]any{
		"security":   map[string]any{"score": 10.0},
		"categories": map[string]any{"security": map[string]any{"score": 90.0}},
	})
	assert.Equal(t, 10, ca.Security.Score)
}
