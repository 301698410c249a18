package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type ChatRepo interface {
	Create(dbc dbctx.Context, row *types.Chat) (*types.Chat, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chat, error)
	GetByExternalID(dbc dbctx.Context, externalID string) (*types.Chat, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Chat, error)
	ListBookmarked(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Chat, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, log *logger.Logger) ChatRepo {
	return &chatRepo{db: db, log: log.With("repo", "ChatRepo")}
}

func (r *chatRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *chatRepo) Create(dbc dbctx.Context, row *types.Chat) (*types.Chat, error) {
	if row == nil {
		return nil, fmt.Errorf("missing chat row")
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *chatRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chat, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing chat id")
	}
	var out types.Chat
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

func (r *chatRepo) GetByExternalID(dbc dbctx.Context, externalID string) (*types.Chat, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("missing chat external id")
	}
	var out types.Chat
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

func (r *chatRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Chat, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Chat
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatRepo) ListBookmarked(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Chat, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Chat
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("user_id = ? AND is_bookmarked = ?", userID, true).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing chat id")
	}
	if len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *chatRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing chat id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Chat{}).Error
}
