package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cs15tutor/tutor/internal/llmproxy"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
	delay time.Duration
	last  llmproxy.GenerateRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req llmproxy.GenerateRequest) (*llmproxy.GenerateResult, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &llmproxy.GenerateResult{Response: g.reply}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeRetriever struct {
	mu       sync.Mutex
	calls    int
	passages []llmproxy.Passage
	err      error
}

func (r *fakeRetriever) Retrieve(ctx context.Context, req llmproxy.RetrieveRequest) ([]llmproxy.Passage, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.passages, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []Interaction
	done chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{done: make(chan struct{}, 8)}
}

func (r *fakeRecorder) Record(_ context.Context, rec Interaction) error {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func newTestService(gen *fakeGenerator, ret *fakeRetriever, rec Recorder) *Service {
	return NewService(NewConversations("sys", 20), gen, ret, rec, Options{
		Model:              "4o-mini",
		Temperature:        0.7,
		GenerateTimeout:    time.Second,
		RetrievalSessionID: "GenericSession",
		RAGThreshold:       0.4,
		RAGTopK:            5,
	})
}

func TestStream_PlainTurn(t *testing.T) {
	gen := &fakeGenerator{reply: "hi there"}
	ret := &fakeRetriever{}
	svc := newTestService(gen, ret, nil)

	events := collect(t, svc.Stream(context.Background(), TurnRequest{
		Username:       "vhenao01",
		ConversationID: "c1",
		Message:        "hello",
	}))

	if len(events) != 2 {
		t.Fatalf("expected thinking+complete, got %+v", events)
	}
	if events[0].Status != StatusThinking {
		t.Fatalf("expected thinking first, got %+v", events[0])
	}
	if events[1].Status != StatusComplete || events[1].Response != "hi there" || events[1].ConversationID != "c1" {
		t.Fatalf("unexpected terminal event: %+v", events[1])
	}

	// Not course-related: retrieval skipped entirely.
	if ret.calls != 0 {
		t.Fatalf("expected no retrieval calls, got %d", ret.calls)
	}
}

func TestStream_CourseRelatedOrdering(t *testing.T) {
	gen := &fakeGenerator{reply: "PassengerQueue dequeues in arrival order."}
	ret := &fakeRetriever{passages: []llmproxy.Passage{
		{DocSummary: "MetroSim spec", Chunks: []string{"PassengerQueue is a FIFO."}},
	}}
	svc := newTestService(gen, ret, nil)

	events := collect(t, svc.Stream(context.Background(), TurnRequest{
		Username:       "vhenao01",
		ConversationID: "c2",
		Message:        "How does PassengerQueue work in metrosim?",
	}))

	if len(events) != 3 {
		t.Fatalf("expected loading+thinking+complete, got %+v", events)
	}
	want := []string{StatusLoading, StatusThinking, StatusComplete}
	for i, st := range want {
		if events[i].Status != st {
			t.Fatalf("event %d: expected %s, got %+v", i, st, events[i])
		}
	}
	if events[2].Response == "" || events[2].RAGContext == "" {
		t.Fatalf("complete event should carry response and context: %+v", events[2])
	}

	// Retrieved context is folded into the system prompt sent upstream.
	if gen.last.System == "sys" {
		t.Fatal("expected augmented system prompt")
	}
}

func TestStream_NoTokenPathEmitsNothingHere(t *testing.T) {
	// Auth failures terminate in the transport layer before the service is
	// reached; the service itself never sees the turn. This pins the event
	// the handlers emit.
	ev := AuthRequiredEvent()
	if !ev.Terminal() || ev.Status != StatusError {
		t.Fatalf("auth-required must be a terminal error event: %+v", ev)
	}
	if ev.Error == "" {
		t.Fatal("auth-required event needs a human-readable message")
	}
}

func TestStream_GenerationTimeout(t *testing.T) {
	gen := &fakeGenerator{reply: "late", delay: 200 * time.Millisecond}
	svc := NewService(NewConversations("sys", 20), gen, nil, nil, Options{
		Model:           "4o-mini",
		GenerateTimeout: 20 * time.Millisecond,
	})

	events := collect(t, svc.Stream(context.Background(), TurnRequest{
		Username:       "vhenao01",
		ConversationID: "c3",
		Message:        "hello",
	}))

	last := events[len(events)-1]
	if last.Status != StatusError {
		t.Fatalf("expected terminal error, got %+v", last)
	}
	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminals)
	}

	// No partial turn appended.
	if h := svc.Conversations().History("c3"); len(h) != 1 {
		t.Fatalf("history should be unchanged after timeout, got %d messages", len(h))
	}
}

func TestStream_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream exploded")}
	svc := newTestService(gen, nil, nil)

	events := collect(t, svc.Stream(context.Background(), TurnRequest{
		Username:       "vhenao01",
		ConversationID: "c4",
		Message:        "hello",
	}))

	last := events[len(events)-1]
	if last.Status != StatusError {
		t.Fatalf("expected error event, got %+v", last)
	}
	// Internal details are never forwarded to the client.
	if last.Error == "" || last.Error == "upstream exploded" {
		t.Fatalf("expected sanitized message, got %q", last.Error)
	}
	if h := svc.Conversations().History("c4"); len(h) != 1 {
		t.Fatalf("history should be unchanged after failure, got %d messages", len(h))
	}
}

func TestStream_RetrievalFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{reply: "still answered"}
	ret := &fakeRetriever{err: errors.New("retrieval down")}
	svc := newTestService(gen, ret, nil)

	events := collect(t, svc.Stream(context.Background(), TurnRequest{
		Username:       "vhenao01",
		ConversationID: "c5",
		Message:        "metrosim question",
	}))

	last := events[len(events)-1]
	if last.Status != StatusComplete || last.Response != "still answered" {
		t.Fatalf("retrieval failure must not fail the turn: %+v", last)
	}
}

func TestStream_EmptyMessage(t *testing.T) {
	gen := &fakeGenerator{reply: "x"}
	svc := newTestService(gen, nil, nil)

	events := collect(t, svc.Stream(context.Background(), TurnRequest{
		Username:       "vhenao01",
		ConversationID: "c6",
		Message:        "   ",
	}))

	if len(events) != 1 || events[0].Status != StatusError {
		t.Fatalf("expected single error event, got %+v", events)
	}
	if gen.callCount() != 0 {
		t.Fatal("no generation call may be made for a malformed request")
	}
}

func TestStream_RecordsInteraction(t *testing.T) {
	gen := &fakeGenerator{reply: "answer"}
	rec := newFakeRecorder()
	svc := newTestService(gen, nil, rec)

	events := collect(t, svc.Stream(context.Background(), TurnRequest{
		Username:       "vhenao01",
		Platform:       "vscode",
		ConversationID: "c7",
		Message:        "hello",
	}))
	if events[len(events)-1].Status != StatusComplete {
		t.Fatalf("expected complete, got %+v", events)
	}

	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("log write never happened")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rec.recs))
	}
	r := rec.recs[0]
	if r.Username != "vhenao01" || r.Platform != "vscode" || r.Query != "hello" || r.Response != "answer" {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestExchange_TwoTurnRoundTrip(t *testing.T) {
	gen := &fakeGenerator{reply: "a"}
	svc := newTestService(gen, nil, nil)

	req := TurnRequest{Username: "u", ConversationID: "rt", Message: "u1"}
	if ev := svc.Exchange(context.Background(), req); ev.Status != StatusComplete {
		t.Fatalf("turn 1: %+v", ev)
	}
	req.Message = "u2"
	if ev := svc.Exchange(context.Background(), req); ev.Status != StatusComplete {
		t.Fatalf("turn 2: %+v", ev)
	}

	h := svc.Conversations().History("rt")
	roles := []string{RoleSystem, RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	if len(h) != len(roles) {
		t.Fatalf("expected %d messages, got %d", len(roles), len(h))
	}
	for i, role := range roles {
		if h[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, h[i].Role)
		}
	}
	if h[1].Content != "u1" || h[3].Content != "u2" {
		t.Fatalf("user messages out of order: %+v", h)
	}
}

func TestStream_ClientDisconnect(t *testing.T) {
	gen := &fakeGenerator{reply: "slow", delay: 300 * time.Millisecond}
	svc := newTestService(gen, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := svc.Stream(ctx, TurnRequest{
		Username:       "u",
		ConversationID: "dc",
		Message:        "hello",
	})

	// Read the thinking event, then walk away.
	<-events
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return // channel closed promptly after cancellation
			}
		case <-deadline:
			t.Fatal("stream not closed after client disconnect")
		}
	}
}
