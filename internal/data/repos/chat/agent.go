package chat

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type AgentRepo interface {
	GetByExternalID(dbc dbctx.Context, externalID string) (*types.Agent, error)
	ListByWorkspace(dbc dbctx.Context, workspaceID string) ([]*types.Agent, error)
}

type agentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentRepo(db *gorm.DB, log *logger.Logger) AgentRepo {
	return &agentRepo{db: db, log: log.With("repo", "AgentRepo")}
}

func (r *agentRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *agentRepo) GetByExternalID(dbc dbctx.Context, externalID string) (*types.Agent, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("missing agent external id")
	}
	var out types.Agent
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

func (r *agentRepo) ListByWorkspace(dbc dbctx.Context, workspaceID string) ([]*types.Agent, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, fmt.Errorf("missing workspace id")
	}
	var out []*types.Agent
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Agent{}).
		Where("workspace_id = ?", workspaceID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
