// Package domain re-exports the persisted types so call sites can use a
// single `types` import.
package domain

import (
	"github.com/seekwell/seekwell-backend/internal/domain/chat"
)

type (
	Chat              = chat.Chat
	SharedChat        = chat.SharedChat
	Message           = chat.Message
	MessageFeedback   = chat.MessageFeedback
	MessageAttachment = chat.MessageAttachment
	Trace             = chat.Trace
	Agent             = chat.Agent

	UserPersonalization = chat.UserPersonalization

	Classification        = chat.Classification
	ClassificationFilters = chat.ClassificationFilters
	MailParticipants      = chat.MailParticipants
	QueryType             = chat.QueryType
	TemporalDirection     = chat.TemporalDirection
	SortDirection         = chat.SortDirection

	Citation      = chat.Citation
	ImageCitation = chat.ImageCitation
)

const (
	MessageRoleUser      = chat.MessageRoleUser
	MessageRoleAssistant = chat.MessageRoleAssistant

	ChatTypeDefault       = chat.ChatTypeDefault
	ChatTypeKnowledgeBase = chat.ChatTypeKnowledgeBase

	QueryTypeGetItems            = chat.QueryTypeGetItems
	QueryTypeSearchWithFilters   = chat.QueryTypeSearchWithFilters
	QueryTypeRetrieveInformation = chat.QueryTypeRetrieveInformation

	TemporalPrev = chat.TemporalPrev
	TemporalNext = chat.TemporalNext
	TemporalNone = chat.TemporalNone

	SortAsc  = chat.SortAsc
	SortDesc = chat.SortDesc
)
