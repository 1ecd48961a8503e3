package chat

// Event statuses, in the order a client may observe them. A turn emits any
// number of loading/thinking events followed by exactly one terminal
// complete or error event.
const (
	StatusLoading  = "loading"
	StatusThinking = "thinking"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Event is one unit of the server -> client stream protocol.
type Event struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	Response       string `json:"response,omitempty"`
	RAGContext     string `json:"rag_context,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}

func loadingEvent(msg string) Event  { return Event{Status: StatusLoading, Message: msg} }
func thinkingEvent(msg string) Event { return Event{Status: StatusThinking, Message: msg} }

func errorEvent(msg string) Event { return Event{Status: StatusError, Error: msg} }

// AuthRequiredEvent is the single event emitted when a turn is attempted
// without a valid credential.
func AuthRequiredEvent() Event {
	return errorEvent("Authentication required. Please log in with your Tufts credentials.")
}

// AccessDeniedEvent is emitted for authenticated users not on the course roster.
func AccessDeniedEvent() Event {
	return errorEvent("Access denied. You must be enrolled in CS 15.")
}
