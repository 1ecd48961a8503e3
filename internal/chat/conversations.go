package chat

import (
	"strings"
	"sync"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type conversation struct {
	mu sync.Mutex

	// turnMu serializes whole turns on this conversation. Concurrent turns
	// on one id are not a supported client pattern, but two racing sends
	// must not interleave their appends.
	turnMu sync.Mutex

	history       []Message
	contextBlocks []string
	createdAt     time.Time
	lastActiveAt  time.Time
}

// Conversations maps client-supplied conversation ids to bounded message
// histories. State lives in process memory only and is lost on restart.
type Conversations struct {
	mu           sync.Mutex
	byID         map[string]*conversation
	systemPrompt string
	maxTurns     int
}

func NewConversations(systemPrompt string, maxTurns int) *Conversations {
	if maxTurns <= 0 || maxTurns > 100 {
		maxTurns = 20
	}
	return &Conversations{
		byID:         make(map[string]*conversation),
		systemPrompt: strings.TrimSpace(systemPrompt),
		maxTurns:     maxTurns,
	}
}

func (cs *Conversations) get(id string) *conversation {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	conv, ok := cs.byID[id]
	if !ok {
		now := time.Now()
		conv = &conversation{
			history:      []Message{{Role: RoleSystem, Content: cs.systemPrompt}},
			createdAt:    now,
			lastActiveAt: now,
		}
		cs.byID[id] = conv
	}
	return conv
}

// lockTurn acquires the per-conversation turn lock. The caller must invoke
// the returned function when its turn is finished.
func (cs *Conversations) lockTurn(id string) func() {
	conv := cs.get(id)
	conv.turnMu.Lock()
	return conv.turnMu.Unlock
}

// History returns a copy of the ordered message sequence for id. An unknown
// id reads as a fresh conversation: just the system message.
func (cs *Conversations) History(id string) []Message {
	conv := cs.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]Message(nil), conv.history...)
}

// Turns returns the number of completed user/assistant exchanges.
func (cs *Conversations) Turns(id string) int {
	conv := cs.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return (len(conv.history) - 1) / 2
}

// SystemContent returns the current system message, including any
// accumulated retrieval context.
func (cs *Conversations) SystemContent(id string) string {
	conv := cs.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.history[0].Content
}

// ContextBlocks returns the accumulated retrieval context for id.
func (cs *Conversations) ContextBlocks(id string) []string {
	conv := cs.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]string(nil), conv.contextBlocks...)
}

// AddContext appends a retrieval context block and folds the accumulated
// context into the system message.
func (cs *Conversations) AddContext(id, block string) {
	if strings.TrimSpace(block) == "" {
		return
	}
	conv := cs.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.contextBlocks = append(conv.contextBlocks, block)
	conv.history[0].Content = cs.systemPrompt + "\n\n" + strings.Join(conv.contextBlocks, "\n\n")
}

// AppendTurn records one completed exchange and trims the history to the
// retained-turn bound, dropping the oldest non-system pairs first.
func (cs *Conversations) AppendTurn(id, userText, assistantText string) {
	conv := cs.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.history = append(conv.history,
		Message{Role: RoleUser, Content: userText},
		Message{Role: RoleAssistant, Content: assistantText},
	)
	conv.lastActiveAt = time.Now()

	for len(conv.history) > 1+2*cs.maxTurns {
		// history[0] is the system message; drop the oldest pair after it.
		conv.history = append(conv.history[:1], conv.history[3:]...)
	}
}
