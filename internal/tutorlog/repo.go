package tutorlog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cs15tutor/tutor/internal/chat"
	"github.com/cs15tutor/tutor/internal/common"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AnonymousUser{}, &ConversationLog{}, &MessageLog{})
}

func hashLogin(username string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(username))))
	return hex.EncodeToString(sum[:])
}

// newAnonymousID generates an identifier like "aqzmrt07": six random
// lowercase letters followed by two digits.
func newAnonymousID() (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	const digits = "0123456789"
	out := make([]byte, 8)
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		out[i] = letters[n.Int64()]
	}
	for i := 6; i < 8; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		out[i] = digits[n.Int64()]
	}
	return string(out), nil
}

func (r *Repo) GetOrCreateUser(ctx context.Context, username string) (*AnonymousUser, error) {
	h := hashLogin(username)

	var user AnonymousUser
	err := r.db.WithContext(ctx).Where("login_hash = ?", h).First(&user).Error
	if err == nil {
		r.db.WithContext(ctx).Model(&user).Update("last_active", time.Now())
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Anonymous ids are random; retry on the unlikely collision.
	for i := 0; i < 5; i++ {
		anonID, err := newAnonymousID()
		if err != nil {
			return nil, err
		}
		user = AnonymousUser{
			LoginHash:   h,
			AnonymousID: anonID,
			CreatedAt:   time.Now(),
			LastActive:  time.Now(),
		}
		if err := r.db.WithContext(ctx).Create(&user).Error; err == nil {
			return &user, nil
		}
		// Another writer may have created the same user concurrently.
		if err := r.db.WithContext(ctx).Where("login_hash = ?", h).First(&user).Error; err == nil {
			return &user, nil
		}
	}
	return nil, errors.New("tutorlog: failed to allocate anonymous id")
}

func (r *Repo) GetOrCreateConversation(ctx context.Context, conversationID string, userID uint64, platform string) (*ConversationLog, error) {
	var conv ConversationLog
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = ConversationLog{
		ConversationID: conversationID,
		UserID:         userID,
		Platform:       platform,
		CreatedAt:      time.Now(),
		LastMessageAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&conv).Error; err != nil {
		// Lost a create race; read the winner's row.
		if gerr := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&conv).Error; gerr == nil {
			return &conv, nil
		}
		return nil, err
	}
	return &conv, nil
}

// SaveInteraction persists one completed turn as a query row and a response
// row, bumping the conversation counters.
func (r *Repo) SaveInteraction(ctx context.Context, rec chat.Interaction) error {
	user, err := r.GetOrCreateUser(ctx, rec.Username)
	if err != nil {
		return err
	}
	conv, err := r.GetOrCreateConversation(ctx, rec.ConversationID, user.ID, rec.Platform)
	if err != nil {
		return err
	}

	queryID, err := common.NewULID()
	if err != nil {
		return err
	}
	responseID, err := common.NewULID()
	if err != nil {
		return err
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&MessageLog{
			ID:                queryID,
			ConversationLogID: conv.ID,
			Kind:              KindQuery,
			Content:           rec.Query,
			CreatedAt:         createdAt,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&MessageLog{
			ID:                responseID,
			ConversationLogID: conv.ID,
			Kind:              KindResponse,
			Content:           rec.Response,
			RAGContext:        rec.RAGContext,
			Model:             rec.Model,
			Temperature:       rec.Temperature,
			LatencyMS:         rec.LatencyMS,
			CreatedAt:         createdAt,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&ConversationLog{}).
			Where("id = ?", conv.ID).
			Updates(map[string]any{
				"message_count":   gorm.Expr("message_count + ?", 2),
				"last_message_at": createdAt,
			}).Error
	})
}

// ListMessages returns stored messages for a conversation in ascending
// creation order.
func (r *Repo) ListMessages(ctx context.Context, conversationID string, limit int) ([]MessageLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var conv ConversationLog
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&conv).Error; err != nil {
		return nil, err
	}
	var msgs []MessageLog
	if err := r.db.WithContext(ctx).
		Where("conversation_log_id = ?", conv.ID).
		Order("created_at ASC, kind ASC, id ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
