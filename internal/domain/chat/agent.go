package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Agent is a named retrieval scope: the apps, channels, data sources and
// knowledge-base items all searches are restricted to when a chat is bound
// to it.
type Agent struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExternalID  string    `gorm:"column:external_id;not null;uniqueIndex" json:"externalId"`
	WorkspaceID string    `gorm:"column:workspace_id;not null;index" json:"workspaceId"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`

	Model  string `gorm:"column:model" json:"model,omitempty"`
	Prompt string `gorm:"column:prompt;type:text" json:"prompt,omitempty"`

	AppIntegrations datatypes.JSON `gorm:"type:jsonb;column:app_integrations" json:"appIntegrations,omitempty"`
	DocIDs          datatypes.JSON `gorm:"type:jsonb;column:doc_ids" json:"docIds,omitempty"`
	ChannelIDs      datatypes.JSON `gorm:"type:jsonb;column:channel_ids" json:"channelIds,omitempty"`
	KbItems         datatypes.JSON `gorm:"type:jsonb;column:kb_items" json:"kbItems,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Agent) TableName() string { return "agents" }

// UserPersonalization stores per-user retrieval tuning, currently the
// hybrid-search alpha override for the native rank profile.
type UserPersonalization struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"userId"`
	Email  string    `gorm:"column:email;not null;index" json:"email"`

	Parameters datatypes.JSON `gorm:"type:jsonb;column:parameters;not null;default:'{}'" json:"parameters"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (UserPersonalization) TableName() string { return "user_personalization" }
