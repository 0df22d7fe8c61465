// Package analyze calls the external text-analysis service that suggests a
// priority, summary and category for an incident description.
//
// The call is best-effort by contract: on any failure — missing key,
// transport error, bad status, empty or malformed response — it degrades to a
// fixed neutral result. Callers never receive an error.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"civildesk/config"
	"civildesk/models"
)

// Result is the classification triple returned for every analysis call.
type Result struct {
	Priority models.TicketPriority `json:"priority"`
	Summary  string                `json:"summary"`
	Category string                `json:"category"`
}

// Fixed degraded results. Shown to operators, hence Portuguese.
var (
	resultNoKey = Result{
		Priority: models.PriorityMedium,
		Summary:  "Chave de API não configurada. Contate o administrador.",
		Category: "Erro de Configuração",
	}
	resultUnavailable = Result{
		Priority: models.PriorityMedium,
		Summary:  "Análise automática indisponível.",
		Category: "Geral",
	}
)

// Client calls the Gemini generateContent endpoint.
type Client struct {
	cfg        config.GeminiConfig
	httpClient *http.Client
}

// NewClient returns a classification client. An empty API key is valid; calls
// then return the configuration-error fallback.
func NewClient(cfg config.GeminiConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// responseSchema constrains the model to the label vocabulary the spreadsheet
// backend also uses.
var responseSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"priority": {"type": "STRING", "enum": ["Baixa", "Média", "Alta", "Crítica"]},
		"summary": {"type": "STRING"},
		"category": {"type": "STRING"}
	}
}`)

var priorityByLabel = map[string]models.TicketPriority{
	"Baixa":   models.PriorityLow,
	"Média":   models.PriorityMedium,
	"Alta":    models.PriorityHigh,
	"Crítica": models.PriorityCritical,
}

// Analyze classifies an incident description. Always returns a usable result.
func (c *Client) Analyze(ctx context.Context, description string) Result {
	if c.cfg.APIKey == "" {
		log.Printf("⚠️  Classification API key not configured")
		return resultNoKey
	}

	prompt := fmt.Sprintf(
		"Analise o seguinte relato de incidente da Defesa Civil e forneça um JSON com a prioridade sugerida "+
			"(Baixa, Média, Alta, Crítica), um resumo curto e uma categoria (ex: Alagamento, Deslizamento, Incêndio). "+
			"Relato: %q", description)

	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	})
	if err != nil {
		log.Printf("❌ Classification request encode failed: %v", err)
		return resultUnavailable
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		log.Printf("❌ Classification request build failed: %v", err)
		return resultUnavailable
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ Classification call failed: %v", err)
		return resultUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("❌ Classification call returned status %d", resp.StatusCode)
		return resultUnavailable
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("❌ Classification response read failed: %v", err)
		return resultUnavailable
	}

	var gen generateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		log.Printf("❌ Classification response decode failed: %v", err)
		return resultUnavailable
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		log.Printf("❌ Classification response was empty")
		return resultUnavailable
	}

	var parsed struct {
		Priority string `json:"priority"`
		Summary  string `json:"summary"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(gen.Candidates[0].Content.Parts[0].Text), &parsed); err != nil {
		log.Printf("❌ Classification payload decode failed: %v", err)
		return resultUnavailable
	}

	result := Result{
		Priority: models.PriorityMedium,
		Summary:  parsed.Summary,
		Category: parsed.Category,
	}
	if p, ok := priorityByLabel[parsed.Priority]; ok {
		result.Priority = p
	}
	if result.Summary == "" {
		return resultUnavailable
	}
	return result
}
