package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type SharedChatRepo interface {
	Create(dbc dbctx.Context, row *types.SharedChat) (*types.SharedChat, error)
	GetByChat(dbc dbctx.Context, chatID uuid.UUID) (*types.SharedChat, error)
	DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error
}

type sharedChatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSharedChatRepo(db *gorm.DB, log *logger.Logger) SharedChatRepo {
	return &sharedChatRepo{db: db, log: log.With("repo", "SharedChatRepo")}
}

func (r *sharedChatRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sharedChatRepo) Create(dbc dbctx.Context, row *types.SharedChat) (*types.SharedChat, error) {
	if row == nil {
		return nil, fmt.Errorf("missing shared chat row")
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *sharedChatRepo) GetByChat(dbc dbctx.Context, chatID uuid.UUID) (*types.SharedChat, error) {
	if chatID == uuid.Nil {
		return nil, fmt.Errorf("missing chat id")
	}
	var out types.SharedChat
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("chat_id = ?", chatID).
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

func (r *sharedChatRepo) DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error {
	if chatID == uuid.Nil {
		return fmt.Errorf("missing chat id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Where("chat_id = ?", chatID).
		Delete(&types.SharedChat{}).Error
}
