package tutorlog

import "time"

// AnonymousUser maps a login name hash to a stable anonymous identifier so
// stored transcripts never carry a real username.
type AnonymousUser struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	LoginHash   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	AnonymousID string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"anonymous_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
}

func (AnonymousUser) TableName() string { return "anonymous_users" }

// ConversationLog tracks one client conversation thread.
type ConversationLog struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"conversation_id"`
	UserID         uint64    `gorm:"index;not null" json:"-"`
	Platform       string    `gorm:"type:varchar(20);not null" json:"platform"`
	CreatedAt      time.Time `json:"created_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
	MessageCount   int       `gorm:"not null" json:"message_count"`
}

func (ConversationLog) TableName() string { return "conversation_logs" }

// MessageLog is one stored query or response.
type MessageLog struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	ConversationLogID uint64 `gorm:"index:idx_msglog_conv_created,priority:1;not null"`
	Kind              string `gorm:"type:varchar(16);index;not null"` // "query" or "response"
	Content           string `gorm:"type:text;not null"`

	// Response-only metadata
	RAGContext  string  `gorm:"type:text"`
	Model       string  `gorm:"type:varchar(50)"`
	Temperature float64 `gorm:"type:decimal(3,2)"`
	LatencyMS   int64

	CreatedAt time.Time `gorm:"index:idx_msglog_conv_created,priority:2"`
}

func (MessageLog) TableName() string { return "message_logs" }

const (
	KindQuery    = "query"
	KindResponse = "response"
)
