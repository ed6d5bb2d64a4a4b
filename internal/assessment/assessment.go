package assessment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FallbackScore replaces a score the model left out or did not give as a number.
const FallbackScore = 50

type Profile struct {
	Name             string   `json:"name"`
	Audience         string   `json:"audience"`
	ValueProposition string   `json:"valueProposition"`
	CallsToAction    []string `json:"callsToAction"`
	SiteStructure    string   `json:"siteStructure"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
}

type CategoryScores struct {
	Findability         int `json:"findability"`
	MobileUsability     int `json:"mobileUsability"`
	OfferClarity        int `json:"offerClarity"`
	TrustProof          int `json:"trustProof"`
	ConversionReadiness int `json:"conversionReadiness"`
}

// Overall is the rounded mean of the five categories.
func (c CategoryScores) Overall() int {
	sum := c.Findability + c.MobileUsability + c.OfferClarity + c.TrustProof + c.ConversionReadiness
	return int(math.Round(float64(sum) / 5))
}

// Assessment is a validated reply. OverallScore is always recomputed from
// Scores; the model's own figure is ignored.
type Assessment struct {
	Profile      Profile
	Scores       CategoryScores
	OverallScore int
	CodeAnalysis *CodeAnalysis
	Strategy     string
}

// Decode recovers JSON from the reply and validates the required shape.
func Decode(text string) (*Assessment, error) {
	v, strategy, err := Parse(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidShape)
	}
	rawScores, ok := obj["categoryScores"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: categoryScores missing", ErrInvalidShape)
	}

	scores := CategoryScores{
		Findability:         Score(rawScores["findability"]),
		MobileUsability:     Score(rawScores["mobileUsability"]),
		OfferClarity:        Score(rawScores["offerClarity"]),
		TrustProof:          Score(rawScores["trustProof"]),
		ConversionReadiness: Score(rawScores["conversionReadiness"]),
	}

	a := &Assessment{
		Profile:      decodeProfile(firstMap(obj, "profileData", "profile")),
		Scores:       scores,
		OverallScore: scores.Overall(),
		Strategy:     strategy,
	}
	if raw, ok := obj["codeAnalysis"].(map[string]any); ok {
		ca := NormalizeCodeAnalysis(raw)
		a.CodeAnalysis = &ca
	}
	return a, nil
}

// ErrInvalidShape means the reply parsed but lacks required fields.
var ErrInvalidShape = errors.New("AI response has an invalid shape")

func decodeProfile(m map[string]any) Profile {
	return Profile{
		Name:             Text(m["name"]),
		Audience:         Text(firstOf(m, "audience", "targetAudience")),
		ValueProposition: Text(m["valueProposition"]),
		CallsToAction:    Strings(firstOf(m, "callsToAction", "ctas")),
		SiteStructure:    Text(m["siteStructure"]),
		Strengths:        Strings(m["strengths"]),
		Weaknesses:       Strings(m["weaknesses"]),
	}
}

// Score coerces a number or numeric string to an integer in [0,100].
// Anything else becomes FallbackScore.
func Score(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return FallbackScore
		}
		f = parsed
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		s = strings.TrimSuffix(s, "/100")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return FallbackScore
		}
		f = parsed
	default:
		return FallbackScore
	}
	if math.IsNaN(f) {
		return FallbackScore
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

// Strings keeps the string elements of a list. Non-lists become an empty list.
func Strings(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Text renders scalars as text and nested values as compact JSON.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return map[string]any{}
}
