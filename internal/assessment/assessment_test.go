package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reply = "```json\n" + `{
  "profileData": {
    "name": "Acme",
    "audience": "small shops",
    "valueProposition": "cheap widgets",
    "callsToAction": ["Buy now", 3],
    "siteStructure": {"pages": 4},
    "strengths": ["fast"],
    "weaknesses": "none"
  },
  "categoryScores": {
    "findability": 81,
    "mobileUsability": "72",
    "offerClarity": 140,
    "trustProof": -5,
    "conversionReadiness": 66.6
  },
  "overallScore": 99,
}` + "\n```"

func TestDecode_ClampsAndRecomputesOverall(t *testing.T) {
	a, err := Decode(reply)
	require.NoError(t, err)

	assert.Equal(t, CategoryScores{
		Findability:         81,
		MobileUsability:     72,
		OfferClarity:        100,
		TrustProof:          0,
		ConversionReadiness: 67,
	}, a.Scores)
	// (81+72+100+0+67)/5 = 64
	assert.Equal(t, 64, a.OverallScore)
	assert.Equal(t, a.Scores.Overall(), a.OverallScore)
	assert.Nil(t, a.CodeAnalysis)

	assert.Equal(t, "Acme", a.Profile.Name)
	assert.Equal(t, []string{"Buy now"}, a.Profile.CallsToAction)
	assert.Equal(t, `{"pages":4}`, a.Profile.SiteStructure)
	assert.Equal(t, []string{}, a.Profile.Weaknesses)
}

func TestDecode_RequiresCategoryScores(t *testing.T) {
	_, err := Decode(`{"profileData": {}}`)
	require.ErrorIs(t, err, ErrInvalidShape)

	_, err = Decode(`[1, 2, 3]`)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestDecode_WithCodeAnalysis(t *testing.T) {
	a, err := Decode(`{"categoryScores": {"findability": 50, "mobileUsability": 50, "offerClarity": 50, "trustProof": 50, "conversionReadiness": 50},
		"codeAnalysis": {"overallScore": 77, "security": {"score": 90}}}`)
	require.NoError(t, err)
	require.NotNil(t, a.CodeAnalysis)
	assert.Equal(t, 77, a.CodeAnalysis.OverallScore)
	assert.Equal(t, 90, a.CodeAnalysis.Security.Score)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 42, Score(float64(42)))
	assert.Equal(t, 43, Score(42.5))
	assert.Equal(t, 100, Score(250.0))
	assert.Equal(t, 0, Score(-1.0))
	assert.Equal(t, 80, Score(" 80% "))
	assert.Equal(t, 75, Score("75/100"))
	assert.Equal(t, FallbackScore, Score("great"))
	assert.Equal(t, FallbackScore, Score(nil))
	assert.Equal(t, FallbackScore, Score([]any{1.0}))
}
