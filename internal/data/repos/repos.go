package repos

import (
	"gorm.io/gorm"

	"github.com/seekwell/seekwell-backend/internal/data/repos/chat"
	"github.com/seekwell/seekwell-backend/internal/data/repos/user"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type ChatRepo = chat.ChatRepo
type MessageRepo = chat.MessageRepo
type TraceRepo = chat.TraceRepo
type AttachmentRepo = chat.AttachmentRepo
type SharedChatRepo = chat.SharedChatRepo
type AgentRepo = chat.AgentRepo

type PersonalizationRepo = user.PersonalizationRepo

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo { return chat.NewChatRepo(db, baseLog) }
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, baseLog)
}
func NewTraceRepo(db *gorm.DB, baseLog *logger.Logger) TraceRepo {
	return chat.NewTraceRepo(db, baseLog)
}
func NewAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) AttachmentRepo {
	return chat.NewAttachmentRepo(db, baseLog)
}
func NewSharedChatRepo(db *gorm.DB, baseLog *logger.Logger) SharedChatRepo {
	return chat.NewSharedChatRepo(db, baseLog)
}
func NewAgentRepo(db *gorm.DB, baseLog *logger.Logger) AgentRepo {
	return chat.NewAgentRepo(db, baseLog)
}
func NewPersonalizationRepo(db *gorm.DB, baseLog *logger.Logger) PersonalizationRepo {
	return user.NewPersonalizationRepo(db, baseLog)
}
