package user

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type PersonalizationRepo interface {
	GetByUser(dbc dbctx.Context, userID uuid.UUID) (*types.UserPersonalization, error)
	Upsert(dbc dbctx.Context, row *types.UserPersonalization) error
	// Alpha reads the hybrid-search mix for a user, falling back to the
	// provided default when unset.
	Alpha(dbc dbctx.Context, userID uuid.UUID, def float64) float64
}

type personalizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPersonalizationRepo(db *gorm.DB, log *logger.Logger) PersonalizationRepo {
	return &personalizationRepo{db: db, log: log.With("repo", "PersonalizationRepo")}
}

func (r *personalizationRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *personalizationRepo) GetByUser(dbc dbctx.Context, userID uuid.UUID) (*types.UserPersonalization, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	var out types.UserPersonalization
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *personalizationRepo) Upsert(dbc dbctx.Context, row *types.UserPersonalization) error {
	if row == nil {
		return fmt.Errorf("missing personalization row")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"parameters", "updated_at"}),
		}).
		Create(row).Error
}

func (r *personalizationRepo) Alpha(dbc dbctx.Context, userID uuid.UUID, def float64) float64 {
	row, err := r.GetByUser(dbc, userID)
	if err != nil || row == nil || len(row.Parameters) == 0 {
		return def
	}
	var params struct {
		Alpha *float64 `json:"alpha"`
	}
	if err := json.Unmarshal(row.Parameters, &params); err != nil || params.Alpha == nil {
		return def
	}
	a := *params.Alpha
	if a < 0 || a > 1 {
		return def
	}
	return a
}
