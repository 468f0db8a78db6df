package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FencedJSONBlock(t *testing.T) {
	text := "Here is the context you asked for:\n\n```json\n" +
		`[{"flow_id": "f1", "tipo": "DoS", "descricao": "flood", "detalhes": "lots of SYNs"}]` +
		"\n```\n\nLet me know if you need more."

	raw, ok := Extract(text)
	require.True(t, ok)

	var items []map[string]string
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "f1", items[0]["flow_id"])
}

func TestExtract_FencedBlockNoLanguageTag(t *testing.T) {
	text := "```\n{\"tipo\": \"ids\", \"n\": 42}\n```"

	raw, ok := Extract(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"tipo": "ids", "n": 42}`, string(raw))
}

func TestExtract_RoundTripThroughFence(t *testing.T) {
	original := map[string]any{
		"tipo":      "firewall",
		"descricao": "block",
		"nested":    map[string]any{"severity": float64(3)},
	}
	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	raw, ok := Extract("```json\n" + string(encoded) + "\n```")
	require.True(t, ok)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestExtract_EmbeddedMidSentence(t *testing.T) {
	text := `The result of my analysis follows. {"tipo": "DoS", "descricao": "syn flood"} That is all.`

	raw, ok := Extract(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"tipo": "DoS", "descricao": "syn flood"}`, string(raw))
}

func TestExtract_ResumesAfterUnparseableSpan(t *testing.T) {
	// The leading parenthesized prose balances but is not JSON; the scan must
	// move on to the real payload instead of giving up.
	text := `(as discussed earlier) the rules are [{"tipo": "ips", "descricao": "kill", "comando": "pkill -f miner"}]`

	raw, ok := Extract(text)
	require.True(t, ok)

	var rules []map[string]string
	require.NoError(t, json.Unmarshal(raw, &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "ips", rules[0]["tipo"])
}

func TestExtract_BrokenFenceFallsThroughToScan(t *testing.T) {
	text := "```json\n{\"tipo\": \"oops\", }\n```\nActual answer: {\"tipo\": \"ids\"}"

	raw, ok := Extract(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"tipo": "ids"}`, string(raw))
}

func TestExtract_EmptyArrayIsData(t *testing.T) {
	raw, ok := Extract("no safe rule exists, so: []")
	require.True(t, ok)
	assert.Equal(t, "[]", string(raw))
}

func TestExtract_NoJSONAnywhere(t *testing.T) {
	for _, text := range []string{
		"",
		"I could not produce any rules for these attacks.",
		"(unbalanced [brackets everywhere",
	} {
		raw, ok := Extract(text)
		assert.False(t, ok, "input %q", text)
		assert.Nil(t, raw)
	}
}
