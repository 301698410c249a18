package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

type Message struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExternalID string    `gorm:"column:external_id;not null;uniqueIndex" json:"externalId"`
	ChatID     uuid.UUID `gorm:"type:uuid;not null;index" json:"chatId"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Email      string    `gorm:"column:email;not null" json:"email"`

	Role    string `gorm:"column:role;not null;index" json:"role"`
	Content string `gorm:"column:content;type:text;not null;default:''" json:"content"`

	// User-turn fields.
	FileIDs        datatypes.JSON `gorm:"type:jsonb;column:file_ids" json:"fileIds,omitempty"`
	ThreadIDs      datatypes.JSON `gorm:"type:jsonb;column:thread_ids" json:"threadIds,omitempty"`
	Classification datatypes.JSON `gorm:"type:jsonb;column:classification" json:"classification,omitempty"`
	ErrorMessage   string         `gorm:"column:error_message;type:text;not null;default:''" json:"errorMessage,omitempty"`

	// Assistant-turn fields.
	Thinking       string         `gorm:"column:thinking;type:text;not null;default:''" json:"thinking,omitempty"`
	Sources        datatypes.JSON `gorm:"type:jsonb;column:sources" json:"sources,omitempty"`
	ImageCitations datatypes.JSON `gorm:"type:jsonb;column:image_citations" json:"imageCitations,omitempty"`
	ModelID        string         `gorm:"column:model_id" json:"modelId,omitempty"`
	Cost           float64        `gorm:"column:cost;not null;default:0" json:"cost"`
	TokensUsed     int            `gorm:"column:tokens_used;not null;default:0" json:"tokensUsed"`

	Feedback datatypes.JSON `gorm:"type:jsonb;column:feedback" json:"feedback,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Message) TableName() string { return "messages" }

// MessageFeedback is the persisted shape of the feedback JSON column.
type MessageFeedback struct {
	Type      string   `json:"type"` // like | dislike
	Feedback  []string `json:"feedback"`
	ShareChat *string  `json:"share_chat"`
}

type MessageAttachment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"messageId"`
	ChatID    uuid.UUID `gorm:"type:uuid;not null;index" json:"chatId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`

	FileID    string `gorm:"column:file_id;not null;index" json:"fileId"`
	FileName  string `gorm:"column:file_name;not null" json:"fileName"`
	FileType  string `gorm:"column:file_type" json:"fileType"`
	FileSize  int64  `gorm:"column:file_size;not null;default:0" json:"fileSize"`
	IsImage   bool   `gorm:"column:is_image;not null;default:false" json:"isImage"`
	ObjectKey string `gorm:"column:object_key" json:"-"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MessageAttachment) TableName() string { return "message_attachments" }

type Trace struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatID      uuid.UUID `gorm:"type:uuid;not null;index" json:"chatId"`
	MessageID   uuid.UUID `gorm:"type:uuid;not null;index" json:"messageId"`
	WorkspaceID string    `gorm:"column:workspace_id;not null" json:"workspaceId"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`

	TraceJSON datatypes.JSON `gorm:"type:jsonb;column:trace_json;not null;default:'{}'" json:"traceJson"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Trace) TableName() string { return "chat_traces" }
