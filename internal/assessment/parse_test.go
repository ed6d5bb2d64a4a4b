package assessment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_IdempotentOnValidJSON(t *testing.T) {
	inputs := []string{
		`{"a": 1, "b": [1, 2]}`,
		`{"text": "trailing, } comma inside ], string", "q": "it's"}`,
		`[1, "two", {"three": null}]`,
		`"just a string"`,
		`42`,
		`{"nested": {"deep": [true, false, {"k": "v"}]}}`,
	}
	for _, in := range inputs {
		var want any
		require.NoError(t, json.Unmarshal([]byte(in), &want))

		got, strategy, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, "direct", strategy, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_FencedTrailingCommas(t *testing.T) {
	in := "Here you go:\n```json\n{\"a\": 1, \"b\": [1,2,],}\n```\nThanks!"

	got, strategy, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, "repaired", strategy)
	assert.Equal(t, map[string]any{"a": float64(1), "b": []any{float64(1), float64(2)}}, got)
}

func TestParse_StrategyOrder(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		strategy string
	}{
		{"fence", "```\n{\"ok\": true}\n```", "fenced"},
		{"prose around object", "Sure! {\"ok\": true} Hope this helps.", "braces"},
		{"bare keys", "{ok: true, count: 2}", "repaired"},
		{"single quotes", "{'ok': 'yes'}", "repaired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, strategy, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, strategy)
		})
	}
}

func TestParse_Unparseable(t *testing.T) {
	_, _, err := Parse("I could not analyze this website.")
	require.ErrorIs(t, err, ErrUnparseable)

	_, _, err = Parse("{this is: not [ json")
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestRepair_LeavesStringContentAlone(t *testing.T) {
	in := `{name: "a, ] b", 'note': 'say "hi"', list: [1, 2, ], key_2: 'it\'s',}`
	out := Repair(in)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, "a, ] b", got["name"])
	assert.Equal(t, `say "hi"`, got["note"])
	assert.Equal(t, []any{float64(1), float64(2)}, got["list"])
	assert.Equal(t, "it's", got["key_2"])
}

func TestRepair_KeepsLiterals(t *testing.T) {
	out := Repair(`{flag: true, items: [null, false,]}`)
	assert.Equal(t, `{"flag": true, "items": [null, false]}`, out)
}

func TestStrategiesArePure(t *testing.T) {
	in := "```json\n{'a': 1,}\n```"
	for _, s := range Strategies {
		first, ok1 := s.Apply(in)
		second, ok2 := s.Apply(in)
		assert.Equal(t, ok1, ok2, s.Name)
		assert.Equal(t, first, second, s.Name)
	}
}
