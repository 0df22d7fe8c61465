package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civildesk/config"
	"civildesk/models"
)

// fakeGemini answers generateContent with a canned classification payload.
func fakeGemini(t *testing.T, payload string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%s}]}}]}`, mustQuote(t, payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustQuote(t *testing.T, s string) string {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return string(raw)
}

func newTestClient(baseURL string) *Client {
	return NewClient(config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		BaseURL: baseURL,
	})
}

func TestAnalyzeParsesClassification(t *testing.T) {
	srv := fakeGemini(t, `{"priority":"Alta","summary":"Deslizamento em área habitada.","category":"Deslizamento"}`, http.StatusOK)

	result := newTestClient(srv.URL).Analyze(context.Background(), "Barranco cedeu atrás das casas")

	assert.Equal(t, models.PriorityHigh, result.Priority)
	assert.Equal(t, "Deslizamento em área habitada.", result.Summary)
	assert.Equal(t, "Deslizamento", result.Category)
}

func TestAnalyzeUnknownPriorityLabelFallsBackToMedium(t *testing.T) {
	srv := fakeGemini(t, `{"priority":"Altíssima","summary":"Resumo.","category":"Geral"}`, http.StatusOK)

	result := newTestClient(srv.URL).Analyze(context.Background(), "relato")

	assert.Equal(t, models.PriorityMedium, result.Priority)
	assert.Equal(t, "Resumo.", result.Summary)
}

func TestAnalyzeWithoutKeyReturnsConfigurationFallback(t *testing.T) {
	client := NewClient(config.GeminiConfig{Model: "gemini-2.5-flash", BaseURL: "http://example.invalid"})

	result := client.Analyze(context.Background(), "relato")

	assert.Equal(t, resultNoKey, result)
}

func TestAnalyzeDegradesOnServerError(t *testing.T) {
	srv := fakeGemini(t, "", http.StatusInternalServerError)

	result := newTestClient(srv.URL).Analyze(context.Background(), "relato")

	assert.Equal(t, resultUnavailable, result)
}

func TestAnalyzeDegradesOnTransportFailure(t *testing.T) {
	result := newTestClient("http://127.0.0.1:1").Analyze(context.Background(), "relato")

	assert.Equal(t, resultUnavailable, result)
}

func TestAnalyzeDegradesOnMalformedPayload(t *testing.T) {
	srv := fakeGemini(t, `not a json object`, http.StatusOK)

	result := newTestClient(srv.URL).Analyze(context.Background(), "relato")

	assert.Equal(t, resultUnavailable, result)
}

func TestAnalyzeDegradesOnEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	t.Cleanup(srv.Close)

	result := newTestClient(srv.URL).Analyze(context.Background(), "relato")

	assert.Equal(t, resultUnavailable, result)
}
