// Package embedding provides the embedding provider client for converting
// text to vector representations via OpenAI-compatible API endpoints.
package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"xplorer/internal/apperr"
)

// Service defines the interface for text embedding operations.
type Service interface {
	Embed(text string) ([]float64, error)
	EmbedBatch(texts []string) ([][]float64, error)
}

// maxAttempts caps provider retries; exhausting them is a terminal failure.
const maxAttempts = 3

// APIService implements Service using an OpenAI-compatible API.
type APIService struct {
	Endpoint  string
	APIKey    string
	ModelName string
	client    *http.Client
	sleep     func(time.Duration) // test hook
}

// NewAPIService creates a new APIService with the given configuration.
func NewAPIService(endpoint, apiKey, modelName string) *APIService {
	return &APIService{
		Endpoint:  endpoint,
		APIKey:    apiKey,
		ModelName: modelName,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		sleep: time.Sleep,
	}
}

// embeddingRequest is the request body for the embedding API.
type embeddingRequest struct {
	Model string      `json:"model"`
	Input interface{} `json:"input"`
}

// embeddingResponse is the response body from the embedding API.
type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

// embeddingData represents a single embedding result. The provider does not
// guarantee request order, so Index is authoritative.
type embeddingData struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// apiError represents an error returned by the API.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Embed converts a single text string into an embedding vector.
func (s *APIService) Embed(text string) ([]float64, error) {
	results, err := s.callWithRetry(text)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apperr.New(apperr.ProviderFailure, "embedding.Embed", "provider returned no results")
	}
	return results[0].Embedding, nil
}

// EmbedBatch converts multiple text strings into embedding vectors, aligned
// with the input order by the provider-returned index.
func (s *APIService) EmbedBatch(texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results, err := s.callWithRetry(texts)
	if err != nil {
		return nil, err
	}
	if len(results) != len(texts) {
		return nil, apperr.New(apperr.ProviderFailure, "embedding.EmbedBatch",
			"provider returned %d results, expected %d", len(results), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for _, d := range results {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, apperr.New(apperr.ProviderFailure, "embedding.EmbedBatch",
				"provider returned invalid index %d", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// callWithRetry issues the request with bounded exponential backoff. Retries
// are invisible to callers; exhaustion surfaces as a ProviderFailure.
func (s *APIService) callWithRetry(input interface{}) ([]embeddingData, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			s.sleep(retryDelay(attempt))
		}
		results, err := s.callAPI(input)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, apperr.Wrap(apperr.ProviderFailure, "embedding", lastErr)
}

// retryDelay returns the backoff before the given attempt, doubling from 2s
// and capped at 10s.
func retryDelay(attempt int) time.Duration {
	d := 2 * time.Second << (attempt - 1)
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// callAPI sends the embedding request to the API and returns the parsed
// response data.
func (s *APIService) callAPI(input interface{}) ([]embeddingData, error) {
	reqBody := embeddingRequest{
		Model: s.ModelName,
		Input: input,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.Endpoint + "/embeddings"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp embeddingResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			return nil, fmt.Errorf("embedding API error (HTTP %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var result embeddingResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("embedding API error: %s", result.Error.Message)
	}

	return result.Data, nil
}
