package tutorlog

import (
	"context"

	"github.com/cs15tutor/tutor/internal/chat"
)

// DBSink writes interaction records straight to the database.
type DBSink struct {
	repo *Repo
}

func NewDBSink(repo *Repo) *DBSink {
	return &DBSink{repo: repo}
}

func (s *DBSink) Record(ctx context.Context, rec chat.Interaction) error {
	return s.repo.SaveInteraction(ctx, rec)
}

// QueueSink hands records to the message queue; a separate worker persists
// them. Useful when the API process should never block on the database.
type QueueSink struct {
	pub *Publisher
}

func NewQueueSink(pub *Publisher) *QueueSink {
	return &QueueSink{pub: pub}
}

func (s *QueueSink) Record(ctx context.Context, rec chat.Interaction) error {
	return s.pub.Publish(ctx, rec)
}

// NopSink discards records.
type NopSink struct{}

func (NopSink) Record(context.Context, chat.Interaction) error { return nil }
