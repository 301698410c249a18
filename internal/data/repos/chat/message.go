package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.Message) ([]*types.Message, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error)
	GetByExternalID(dbc dbctx.Context, externalID string) (*types.Message, error)
	ListByChat(dbc dbctx.Context, chatID uuid.UUID, limit int) ([]*types.Message, error)
	// LastUserMessage returns the most recent user-role row in a chat.
	LastUserMessage(dbc dbctx.Context, chatID uuid.UUID) (*types.Message, error)
	// AssistantAfter returns the assistant row created at or after the
	// given instant, if any.
	AssistantAfter(dbc dbctx.Context, chatID uuid.UUID, after time.Time) (*types.Message, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *messageRepo) Create(dbc dbctx.Context, rows []*types.Message) ([]*types.Message, error) {
	if len(rows) == 0 {
		return []*types.Message{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing message id")
	}
	var out types.Message
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) GetByExternalID(dbc dbctx.Context, externalID string) (*types.Message, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("missing message external id")
	}
	var out types.Message
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("external_id = ?", externalID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) ListByChat(dbc dbctx.Context, chatID uuid.UUID, limit int) ([]*types.Message, error) {
	if chatID == uuid.Nil {
		return nil, fmt.Errorf("missing chat id")
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	var out []*types.Message
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) LastUserMessage(dbc dbctx.Context, chatID uuid.UUID) (*types.Message, error) {
	if chatID == uuid.Nil {
		return nil, fmt.Errorf("missing chat id")
	}
	var out types.Message
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("chat_id = ? AND role = ?", chatID, types.MessageRoleUser).
		Order("created_at DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) AssistantAfter(dbc dbctx.Context, chatID uuid.UUID, after time.Time) (*types.Message, error) {
	if chatID == uuid.Nil {
		return nil, fmt.Errorf("missing chat id")
	}
	var out types.Message
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("chat_id = ? AND role = ? AND created_at >= ?", chatID, types.MessageRoleAssistant, after).
		Order("created_at ASC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing message id")
	}
	if len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *messageRepo) DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error {
	if chatID == uuid.Nil {
		return fmt.Errorf("missing chat id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Where("chat_id = ?", chatID).
		Delete(&types.Message{}).Error
}
