package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-k-santos/IRS-LLM/internal/llm"
	"github.com/joao-k-santos/IRS-LLM/internal/registry"
	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

func TestRuleGenerator_GeneratesFromHistory(t *testing.T) {
	regSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listar_ataques":
			json.NewEncoder(w).Encode([]map[string]string{
				{"id": "1", "tipo": "DoS", "descricao": "syn flood", "detalhes": "high SYN rate"},
			})
		case "/listar_dispositivos":
			json.NewEncoder(w).Encode([]map[string]string{{"ip-dispositivo": "10.0.0.1"}})
		default:
			t.Errorf("unexpected registry path %s", r.URL.Path)
		}
	}))
	defer regSrv.Close()

	var gotPrompt string
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Prompt
		json.NewEncoder(w).Encode(map[string]any{
			"response": "```json\n" +
				`[{"tipo": "firewall", "descricao": "rate-limit syn", "comando": "iptables -A INPUT -p tcp --syn -m limit --limit 25/s -j ACCEPT"}]` +
				"\n```",
			"done": true,
		})
	}))
	defer llmSrv.Close()

	gen := NewRuleGenerator(llm.NewClient(llmSrv.URL, "", time.Minute), registry.NewClient(regSrv.URL), "m", discardLogger())

	rules, err := gen.Generate(context.Background(), testJWT(t, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, types.RuleFirewall, rules[0].Tipo)

	assert.Contains(t, gotPrompt, "syn flood", "registered contexts must appear in the prompt")
	assert.Contains(t, gotPrompt, "10.0.0.1", "trusted IPs must appear in the prompt")
}

func TestRuleGenerator_NoHistoryNoCall(t *testing.T) {
	regSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/listar_ataques", r.URL.Path)
		w.Write([]byte("[]"))
	}))
	defer regSrv.Close()

	var llmCalls atomic.Int32
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls.Add(1)
	}))
	defer llmSrv.Close()

	gen := NewRuleGenerator(llm.NewClient(llmSrv.URL, "", time.Minute), registry.NewClient(regSrv.URL), "m", discardLogger())

	rules, err := gen.Generate(context.Background(), testJWT(t, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Equal(t, int32(0), llmCalls.Load())
}

func TestRuleGenerator_UnproductiveAnswer(t *testing.T) {
	regSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listar_ataques":
			json.NewEncoder(w).Encode([]map[string]string{
				{"id": "1", "tipo": "DoS", "descricao": "d", "detalhes": "x"},
			})
		case "/listar_dispositivos":
			w.Write([]byte("[]"))
		}
	}))
	defer regSrv.Close()

	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "no structured output today", "done": true})
	}))
	defer llmSrv.Close()

	gen := NewRuleGenerator(llm.NewClient(llmSrv.URL, "", time.Minute), registry.NewClient(regSrv.URL), "m", discardLogger())

	rules, err := gen.Generate(context.Background(), testJWT(t, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleGenerator_ExpiredToken(t *testing.T) {
	gen := NewRuleGenerator(llm.NewClient("http://unused", "", time.Minute),
		registry.NewClient("http://unused"), "m", discardLogger())

	_, err := gen.Generate(context.Background(), testJWT(t, time.Now().Add(-time.Minute)))
	require.Error(t, err)
	assert.True(t, types.IsAuth(err))
}
