package llmproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("request_type"); got != "call" {
			t.Errorf("expected request_type call, got %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "key-123" {
			t.Errorf("expected api key header, got %q", got)
		}

		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "what is a stack?" || req.Model != "4o-mini" {
			t.Errorf("unexpected request: %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{"result": "A stack is LIFO.", "rag_context": nil})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123")
	res, err := c.Generate(context.Background(), GenerateRequest{
		Model: "4o-mini",
		Query: "what is a stack?",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Response != "A stack is LIFO." {
		t.Fatalf("unexpected response %q", res.Response)
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "proxy overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	if _, err := c.Generate(context.Background(), GenerateRequest{Query: "q"}); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "k")
	if _, err := c.Generate(ctx, GenerateRequest{Query: "q"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestRetrieve_CollapsesDuplicates(t *testing.T) {
	var calls int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		<-release
		json.NewEncoder(w).Encode([]Passage{{DocSummary: "metrosim spec", Chunks: []string{"queues"}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	req := RetrieveRequest{Query: "metrosim", SessionID: "GenericSession", RAGTopK: 5}

	results := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			passages, err := c.Retrieve(context.Background(), req)
			if err != nil {
				t.Errorf("retrieve: %v", err)
			}
			results <- len(passages)
		}()
	}

	// Let both goroutines pile onto the same flight before releasing.
	close(release)
	for i := 0; i < 2; i++ {
		if n := <-results; n != 1 {
			t.Fatalf("expected 1 passage, got %d", n)
		}
	}
	if n := atomic.LoadInt64(&calls); n > 2 {
		t.Fatalf("expected at most 2 upstream calls, got %d", n)
	}
}

func TestFormatContext(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Fatalf("empty passages should format to empty string, got %q", got)
	}

	got := FormatContext([]Passage{
		{DocSummary: "MetroSim assignment spec", Chunks: []string{"PassengerQueue is a FIFO."}},
	})
	if !strings.Contains(got, "#1 MetroSim assignment spec") {
		t.Fatalf("missing doc summary: %q", got)
	}
	if !strings.Contains(got, "#1.1 PassengerQueue is a FIFO.") {
		t.Fatalf("missing chunk: %q", got)
	}
	if !strings.Contains(got, "additional context") {
		t.Fatalf("missing preamble: %q", got)
	}
}
