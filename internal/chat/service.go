package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cs15tutor/tutor/internal/llmproxy"
)

// Interaction is the fire-and-forget record handed to the logging sink
// after a successful turn.
type Interaction struct {
	Username       string    `json:"username"`
	ConversationID string    `json:"conversation_id"`
	Platform       string    `json:"platform"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	RAGContext     string    `json:"rag_context"`
	Model          string    `json:"model"`
	Temperature    float64   `json:"temperature"`
	LatencyMS      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recorder receives interaction records. Failures are the recorder's
// problem; they must never fail a turn.
type Recorder interface {
	Record(ctx context.Context, rec Interaction) error
}

// Options carries the generation parameters the controller forwards to the
// proxy on every turn.
type Options struct {
	Model              string
	Temperature        float64
	GenerateTimeout    time.Duration
	RetrievalSessionID string
	RAGThreshold       float64
	RAGTopK            int
}

// TurnRequest is one authenticated question from a client.
type TurnRequest struct {
	Username       string
	Platform       string
	ConversationID string
	Message        string
}

// Service orchestrates one question/answer turn: optional retrieval,
// generation with a bounded wait, history append, and a fire-and-forget log
// write. Events are delivered strictly in emission order.
type Service struct {
	conversations *Conversations
	generator     llmproxy.Generator
	retriever     llmproxy.Retriever
	recorder      Recorder
	opts          Options
}

func NewService(conversations *Conversations, gen llmproxy.Generator, ret llmproxy.Retriever, rec Recorder, opts Options) *Service {
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 59 * time.Second
	}
	return &Service{
		conversations: conversations,
		generator:     gen,
		retriever:     ret,
		recorder:      rec,
		opts:          opts,
	}
}

func (s *Service) Conversations() *Conversations { return s.conversations }

// Stream runs one turn and returns a channel of events closed after the
// terminal event. If ctx is cancelled mid-turn the service stops emitting
// and abandons the in-flight upstream call.
func (s *Service) Stream(ctx context.Context, req TurnRequest) <-chan Event {
	out := make(chan Event, 4)
	go func() {
		defer close(out)
		s.runTurn(ctx, req, func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return out
}

// Exchange runs one turn and returns only the terminal event, for the
// non-streaming endpoint.
func (s *Service) Exchange(ctx context.Context, req TurnRequest) Event {
	var terminal Event
	s.runTurn(ctx, req, func(ev Event) bool {
		if ev.Terminal() {
			terminal = ev
		}
		return true
	})
	if terminal.Status == "" {
		terminal = errorEvent("Sorry, an error occurred while processing your request.")
	}
	return terminal
}

// runTurn drives the turn state machine, handing each event to emit. emit
// returns false when the client is gone; the turn stops emitting but a
// completed exchange is still appended and logged.
func (s *Service) runTurn(ctx context.Context, req TurnRequest, emit func(Event) bool) {
	start := time.Now()

	if strings.TrimSpace(req.Message) == "" {
		emit(errorEvent("Message is required"))
		return
	}
	convID := req.ConversationID
	if convID == "" {
		convID = "default"
	}

	unlock := s.conversations.lockTurn(convID)
	defer unlock()

	// Retrieval is a heuristic enrichment: only attempted for questions
	// that mention a known assignment, and failures degrade silently.
	ragBlock := ""
	if s.retriever != nil && CourseRelated(req.Message) {
		if !emit(loadingEvent("Looking at course content...")) {
			return
		}
		passages, err := s.retriever.Retrieve(ctx, llmproxy.RetrieveRequest{
			Query:        req.Message,
			SessionID:    s.opts.RetrievalSessionID,
			RAGThreshold: s.opts.RAGThreshold,
			RAGTopK:      s.opts.RAGTopK,
		})
		if err != nil {
			log.Printf("[chat] retrieval degraded for conversation %s: %v", convID, err)
		} else if len(passages) > 0 {
			ragBlock = llmproxy.FormatContext(passages)
			s.conversations.AddContext(convID, ragBlock)
		}
	}

	if !emit(thinkingEvent("Thinking...")) {
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()

	result, err := s.generator.Generate(genCtx, llmproxy.GenerateRequest{
		Model:       s.opts.Model,
		System:      s.conversations.SystemContent(convID),
		Query:       req.Message,
		Temperature: s.opts.Temperature,
		LastK:       s.conversations.Turns(convID),
		SessionID:   convID,
		RAGUsage:    false,
	})
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			log.Printf("[chat] generation timed out for conversation %s", convID)
			emit(errorEvent("Sorry, the tutor took too long to respond. Please try again."))
			return
		}
		log.Printf("[chat] generation failed for conversation %s: %v", convID, err)
		emit(errorEvent("Sorry, an error occurred while processing your request."))
		return
	}

	s.conversations.AppendTurn(convID, req.Message, result.Response)

	accumulated := strings.Join(s.conversations.ContextBlocks(convID), "\n\n")
	if s.recorder != nil {
		rec := Interaction{
			Username:       req.Username,
			ConversationID: convID,
			Platform:       req.Platform,
			Query:          req.Message,
			Response:       result.Response,
			RAGContext:     accumulated,
			Model:          s.opts.Model,
			Temperature:    s.opts.Temperature,
			LatencyMS:      time.Since(start).Milliseconds(),
			CreatedAt:      time.Now(),
		}
		go func() {
			logCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.recorder.Record(logCtx, rec); err != nil {
				log.Printf("[chat] log write failed for conversation %s: %v", convID, err)
			}
		}()
	}

	emit(Event{
		Status:         StatusComplete,
		Response:       result.Response,
		RAGContext:     accumulated,
		ConversationID: convID,
	})
}
