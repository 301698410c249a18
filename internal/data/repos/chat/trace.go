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

type TraceRepo interface {
	Create(dbc dbctx.Context, row *types.Trace) (*types.Trace, error)
	GetByMessageID(dbc dbctx.Context, messageID uuid.UUID) (*types.Trace, error)
	GetLatestByChat(dbc dbctx.Context, chatID uuid.UUID) (*types.Trace, error)
	DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error
}

type traceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraceRepo(db *gorm.DB, log *logger.Logger) TraceRepo {
	return &traceRepo{db: db, log: log.With("repo", "TraceRepo")}
}

func (r *traceRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *traceRepo) Create(dbc dbctx.Context, row *types.Trace) (*types.Trace, error) {
	if row == nil {
		return nil, fmt.Errorf("missing trace row")
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *traceRepo) GetByMessageID(dbc dbctx.Context, messageID uuid.UUID) (*types.Trace, error) {
	if messageID == uuid.Nil {
		return nil, fmt.Errorf("missing message id")
	}
	var out types.Trace
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("message_id = ?", messageID).
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

func (r *traceRepo) GetLatestByChat(dbc dbctx.Context, chatID uuid.UUID) (*types.Trace, error) {
	if chatID == uuid.Nil {
		return nil, fmt.Errorf("missing chat id")
	}
	var out types.Trace
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

func (r *traceRepo) DeleteByChat(dbc dbctx.Context, chatID uuid.UUID) error {
	if chatID == uuid.Nil {
		return fmt.Errorf("missing chat id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Where("chat_id = ?", chatID).
		Delete(&types.Trace{}).Error
}
