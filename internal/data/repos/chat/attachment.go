package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type AttachmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.MessageAttachment) ([]*types.MessageAttachment, error)
	ListByMessage(dbc dbctx.Context, messageID uuid.UUID) ([]*types.MessageAttachment, error)
	ListByChat(dbc dbctx.Context, chatID uuid.UUID) ([]*types.MessageAttachment, error)
	DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error
}

type attachmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttachmentRepo(db *gorm.DB, log *logger.Logger) AttachmentRepo {
	return &attachmentRepo{db: db, log: log.With("repo", "AttachmentRepo")}
}

func (r *attachmentRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *attachmentRepo) Create(dbc dbctx.Context, rows []*types.MessageAttachment) ([]*types.MessageAttachment, error) {
	if len(rows) == 0 {
		return []*types.MessageAttachment{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *attachmentRepo) ListByMessage(dbc dbctx.Context, messageID uuid.UUID) ([]*types.MessageAttachment, error) {
	if messageID == uuid.Nil {
		return nil, fmt.Errorf("missing message id")
	}
	var out []*types.MessageAttachment
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.MessageAttachment{}).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attachmentRepo) ListByChat(dbc dbctx.Context, chatID uuid.UUID) ([]*types.MessageAttachment, error) {
	if chatID == uuid.Nil {
		return nil, fmt.Errorf("missing chat id")
	}
	var out []*types.MessageAttachment
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.MessageAttachment{}).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attachmentRepo) DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error {
	if chatID == uuid.Nil {
		return fmt.Errorf("missing chat id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Where("chat_id = ?", chatID).
		Delete(&types.MessageAttachment{}).Error
}
