package llmproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// Generator produces one assistant answer for a query with prior context
// managed server-side by the proxy (lastk previous exchanges).
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// Retriever fetches course-material passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, req RetrieveRequest) ([]Passage, error)
}

type GenerateRequest struct {
	Model       string  `json:"model"`
	System      string  `json:"system"`
	Query       string  `json:"query"`
	Temperature float64 `json:"temperature"`
	LastK       int     `json:"lastk"`
	SessionID   string  `json:"session_id"`
	RAGUsage    bool    `json:"rag_usage"`
}

type GenerateResult struct {
	Response   string `json:"result"`
	RAGContext any    `json:"rag_context"`
}

type RetrieveRequest struct {
	Query        string  `json:"query"`
	SessionID    string  `json:"session_id"`
	RAGThreshold float64 `json:"rag_threshold"`
	RAGTopK      int     `json:"rag_k"`
}

// Passage is one retrieved document with its matched chunks.
type Passage struct {
	DocSummary string   `json:"doc_summary"`
	Chunks     []string `json:"chunks"`
}

// Client talks the course LLM proxy wire protocol: a single endpoint where
// the request_type header selects the operation.
type Client struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client

	retrievals singleflight.Group
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		Endpoint: endpoint,
		APIKey:   apiKey,
		// Per-call deadlines come from the caller's context.
		HTTP: &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) post(ctx context.Context, requestType string, body any, out any) error {
	if c.HTTP == nil {
		return errors.New("llmproxy: http client is nil")
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("request_type", requestType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("llmproxy: %s status %d: %s", requestType, resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var out GenerateResult
	if err := c.post(ctx, "call", req, &out); err != nil {
		return nil, err
	}
	if out.Response == "" {
		return nil, errors.New("llmproxy: empty generation result")
	}
	return &out, nil
}

// Retrieve collapses duplicate in-flight lookups for the same query so a
// burst of identical questions costs one upstream call.
func (c *Client) Retrieve(ctx context.Context, req RetrieveRequest) ([]Passage, error) {
	key := req.SessionID + "\x00" + req.Query
	v, err, _ := c.retrievals.Do(key, func() (any, error) {
		var out []Passage
		if err := c.post(ctx, "retrieve", req, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Passage), nil
}
