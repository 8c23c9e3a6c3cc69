package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Gemini task types.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"

	geminiMaxBatch = 100
)

// GeminiConfig holds configuration for the Gemini embedding API.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// GeminiEmbedder calls the Google Generative Language embedding endpoints.
type GeminiEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	TaskType             string        `json:"taskType,omitempty"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiValues struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiValues `json:"embedding"`
}

type geminiBatchResponse struct {
	Embeddings []geminiValues `json:"embeddings"`
}

// NewGeminiEmbedder creates a Gemini embedder. The API key and dimensions are required.
func NewGeminiEmbedder(cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("gemini: dimensions must be positive")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "models/embedding-001"
	}
	if !strings.HasPrefix(cfg.Model, "models/") {
		cfg.Model = "models/" + cfg.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiEmbedder{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (g *GeminiEmbedder) request(text, task string) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:                g.model,
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType:             task,
		OutputDimensionality: g.dimensions,
	}
}

// Embed embeds a search query with the RETRIEVAL_QUERY task type.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp geminiEmbedResponse
	if err := g.post(ctx, ":embedContent", g.request(text, TaskRetrievalQuery), &resp); err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds passages with the RETRIEVAL_DOCUMENT task type, at most 100 per request.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := start + geminiMaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		body := geminiBatchRequest{Requests: make([]geminiEmbedRequest, 0, end-start)}
		for _, text := range texts[start:end] {
			body.Requests = append(body.Requests, g.request(text, TaskRetrievalDocument))
		}
		var resp geminiBatchResponse
		if err := g.post(ctx, ":batchEmbedContents", body, &resp); err != nil {
			return nil, err
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (g *GeminiEmbedder) post(ctx context.Context, method string, body, into any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gemini: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/"+g.model+method, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return transportError(ctx, "gemini", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, "gemini", err)
	}
	if resp.StatusCode != http.StatusOK {
		return newProviderError("gemini", resp, data)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	return nil
}

// Dimensions returns the requested output dimensionality.
func (g *GeminiEmbedder) Dimensions() int { return g.dimensions }

// Close releases resources.
func (g *GeminiEmbedder) Close() error { return nil }
