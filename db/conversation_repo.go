package db

import (
	"context"
	"errors"
	"time"

	errs "github.com/techagentng/citizenchat/errors"
	"github.com/techagentng/citizenchat/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository owns conversations, their messages and the per
// participant unread counters. Every write that touches a counter runs in the
// same transaction as the message rows it summarises.
type ConversationRepository interface {
	ResolveOrCreate(ctx context.Context, a, b uint) (*models.Conversation, error)
	FindByKey(ctx context.Context, key string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint, page models.Page) ([]models.Conversation, int64, error)
	AppendMessage(ctx context.Context, senderID, receiverID uint, content string) (*models.Message, *models.Conversation, error)
	ListMessages(ctx context.Context, key string, page models.Page) ([]models.Message, int64, error)
	MarkRead(ctx context.Context, key string, readerID uint) (int64, error)
	UnreadTotal(ctx context.Context, userID uint) (int64, error)
	Reconcile(ctx context.Context, key string) ([]models.UnreadDrift, error)
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

func (r *conversationRepo) ResolveOrCreate(ctx context.Context, a, b uint) (*models.Conversation, error) {
	var conv *models.Conversation
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, err = resolveOrCreate(tx, a, b)
		return err
	})
	if err != nil {
		return nil, storageErr(err, "conversation")
	}
	return conv, nil
}

// resolveOrCreate inserts the conversation if its key is unseen and returns
// the stored row locked for the rest of tx. Two concurrent first contacts race
// on the unique key; the loser's insert is a no-op and both read the same row.
func resolveOrCreate(tx *gorm.DB, a, b uint) (*models.Conversation, error) {
	key := models.CanonicalKey(a, b)
	fresh := models.Conversation{
		Key:           key,
		ParticipantA:  a,
		ParticipantB:  b,
		LastMessageAt: time.Now().UTC(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_key"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := tx.Clauses(forUpdate).Where("conversation_key = ?", key).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) FindByKey(ctx context.Context, key string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.DB.WithContext(ctx).Where("conversation_key = ?", key).First(&conv).Error; err != nil {
		return nil, storageErr(err, "conversation")
	}
	return &conv, nil
}

func (r *conversationRepo) ListForUser(ctx context.Context, userID uint, page models.Page) ([]models.Conversation, int64, error) {
	var (
		convs []models.Conversation
		total int64
	)
	q := r.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storageErr(err, "conversations")
	}
	err := q.Order("last_message_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&convs).Error
	if err != nil {
		return nil, 0, storageErr(err, "conversations")
	}
	return convs, total, nil
}

// AppendMessage stores the message, updates the conversation summary and bumps
// the receiver's unread counter as one unit. Message timestamps never go
// backwards within a conversation.
func (r *conversationRepo) AppendMessage(ctx context.Context, senderID, receiverID uint, content string) (*models.Message, *models.Conversation, error) {
	var (
		msg  models.Message
		conv *models.Conversation
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, err = resolveOrCreate(tx, senderID, receiverID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if conv.LastSenderID != nil && now.Before(conv.LastMessageAt) {
			now = conv.LastMessageAt
		}
		msg = models.Message{
			ConversationKey: conv.Key,
			SenderID:        senderID,
			ReceiverID:      receiverID,
			Content:         content,
			CreatedAt:       now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		col, ok := conv.UnreadColumn(receiverID)
		if !ok {
			return errs.Internal("receiver is not a participant", nil)
		}
		err = tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"last_message":    content,
			"last_message_at": now,
			"last_sender_id":  senderID,
			col:               gorm.Expr(col + " + 1"),
		}).Error
		if err != nil {
			return err
		}
		return tx.First(conv, conv.ID).Error
	})
	if err != nil {
		return nil, nil, storageErr(err, "message")
	}
	return &msg, conv, nil
}

func (r *conversationRepo) ListMessages(ctx context.Context, key string, page models.Page) ([]models.Message, int64, error) {
	var (
		msgs  []models.Message
		total int64
	)
	q := r.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_key = ?", key).
		Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storageErr(err, "messages")
	}
	err := q.Order("created_at ASC, id ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, storageErr(err, "messages")
	}
	return msgs, total, nil
}

// MarkRead flips the reader's unread messages and resets the reader's counter
// in one transaction. A conversation that does not exist yet has nothing to
// read, so it is a no-op.
func (r *conversationRepo) MarkRead(ctx context.Context, key string, readerID uint) (int64, error) {
	var flipped int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		err := tx.Clauses(forUpdate).Where("conversation_key = ?", key).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		col, ok := conv.UnreadColumn(readerID)
		if !ok {
			return errs.Forbidden("not a participant of this conversation")
		}

		res := tx.Model(&models.Message{}).
			Where("conversation_key = ? AND receiver_id = ? AND is_read = ?", key, readerID, false).
			Update("is_read", true)
		if res.Error != nil {
			return res.Error
		}
		flipped = res.RowsAffected

		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update(col, 0).Error
	})
	if err != nil {
		return 0, storageErr(err, "conversation")
	}
	return flipped, nil
}

func (r *conversationRepo) UnreadTotal(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Raw(`SELECT COALESCE(SUM(
			CASE WHEN participant_a = ? THEN unread_count_a ELSE 0 END +
			CASE WHEN participant_b = ? THEN unread_count_b ELSE 0 END), 0)
		FROM conversations WHERE participant_a = ? OR participant_b = ?`,
		userID, userID, userID, userID).Scan(&total).Error
	if err != nil {
		return 0, storageErr(err, "unread total")
	}
	return total, nil
}

// Reconcile recomputes both counters of a conversation from its message rows
// and repairs any that drifted.
func (r *conversationRepo) Reconcile(ctx context.Context, key string) ([]models.UnreadDrift, error) {
	var drifts []models.UnreadDrift
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Clauses(forUpdate).Where("conversation_key = ?", key).First(&conv).Error; err != nil {
			return err
		}
		for _, id := range []uint{conv.ParticipantA, conv.ParticipantB} {
			var actual int64
			err := tx.Model(&models.Message{}).
				Where("conversation_key = ? AND receiver_id = ? AND is_read = ?", key, id, false).
				Count(&actual).Error
			if err != nil {
				return err
			}
			counter := conv.UnreadFor(id)
			if int64(counter) == actual {
				continue
			}
			col, _ := conv.UnreadColumn(id)
			if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update(col, actual).Error; err != nil {
				return err
			}
			drifts = append(drifts, models.UnreadDrift{
				ConversationKey: key,
				UserID:          id,
				Counter:         counter,
				Actual:          int(actual),
			})
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "conversation")
	}
	return drifts, nil
}
