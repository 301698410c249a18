package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ChatTypeDefault       = "default"
	ChatTypeKnowledgeBase = "kb"
)

type Chat struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExternalID  string    `gorm:"column:external_id;not null;uniqueIndex" json:"externalId"`
	WorkspaceID string    `gorm:"column:workspace_id;not null;index" json:"workspaceId"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Email       string    `gorm:"column:email;not null" json:"email"`

	Title        string  `gorm:"column:title;not null;default:'Untitled'" json:"title"`
	IsBookmarked bool    `gorm:"column:is_bookmarked;not null;default:false;index" json:"isBookmarked"`
	AgentID      *string `gorm:"column:agent_id;index" json:"agentId,omitempty"`
	Type         string  `gorm:"column:type;not null;default:'default'" json:"type"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Chat) TableName() string { return "chats" }

type SharedChat struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatID    uuid.UUID `gorm:"type:uuid;not null;index" json:"chatId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	TokenHash string    `gorm:"column:token_hash;not null" json:"-"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (SharedChat) TableName() string { return "shared_chats" }
