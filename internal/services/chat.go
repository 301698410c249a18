package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	redisclients "github.com/seekwell/seekwell-backend/internal/clients/redis"
	"github.com/seekwell/seekwell-backend/internal/data/repos"
	"github.com/seekwell/seekwell-backend/internal/db"
	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/modules/answer"
	"github.com/seekwell/seekwell-backend/internal/pkg/dbctx"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
	"github.com/seekwell/seekwell-backend/internal/platform/apierr"
	"github.com/seekwell/seekwell-backend/internal/platform/gcs"
	"github.com/seekwell/seekwell-backend/internal/platform/openai"
	"github.com/seekwell/seekwell-backend/internal/search"
	"github.com/seekwell/seekwell-backend/internal/sse"
)

// RequestUser identifies the authenticated caller for one request.
type RequestUser struct {
	ID          uuid.UUID
	Email       string
	WorkspaceID string
	Timezone    string
}

// AttachmentUpload is one uploaded file accompanying a user message.
type AttachmentUpload struct {
	FileID   string
	FileName string
	FileType string
	FileSize int64
	IsImage  bool
	Data     []byte
}

// SendMessageInput starts or continues a chat.
type SendMessageInput struct {
	User           RequestUser
	Message        string
	ChatExternalID string
	ModelConfig    string
	KbItems        string
	AgentID        string
	Agentic        bool
	Attachments    []AttachmentUpload
}

// RetryInput regenerates an answer for an existing turn.
type RetryInput struct {
	User              RequestUser
	MessageExternalID string
	ModelConfig       string
}

// FeedbackInput records a reaction on an assistant message. ShareChat
// additionally mints a share token for support follow-up.
type FeedbackInput struct {
	User              RequestUser
	MessageExternalID string
	Type              string
	Feedback          []string
	ShareChat         bool
}

// ChatWithMessages is the GET /chat payload.
type ChatWithMessages struct {
	Chat     *types.Chat      `json:"chat"`
	Messages []*types.Message `json:"messages"`
}

type ChatService interface {
	SendMessage(ctx context.Context, stream *sse.Stream, in SendMessageInput) error
	Retry(ctx context.Context, stream *sse.Stream, in RetryInput) error
	// Stop cancels a chat's live stream. Stopping a chat with no live
	// stream is a no-op.
	Stop(ctx context.Context, chatExternalID string) bool
	GetChat(ctx context.Context, user RequestUser, chatExternalID string) (*ChatWithMessages, error)
	History(ctx context.Context, user RequestUser, limit, offset int) ([]*types.Chat, error)
	Favorites(ctx context.Context, user RequestUser, limit, offset int) ([]*types.Chat, error)
	Rename(ctx context.Context, user RequestUser, chatExternalID, title string) error
	Bookmark(ctx context.Context, user RequestUser, chatExternalID string, bookmarked bool) error
	Delete(ctx context.Context, user RequestUser, chatExternalID string) error
	Trace(ctx context.Context, user RequestUser, chatExternalID string) (*types.Trace, error)
	Feedback(ctx context.Context, in FeedbackInput) (shareToken string, err error)
	FollowUpQuestions(ctx context.Context, user RequestUser, chatExternalID string) ([]string, error)
	RegenerateTitle(ctx context.Context, user RequestUser, chatExternalID string) (string, error)
}

type chatService struct {
	log *logger.Logger
	pg  *db.PostgresService

	chats           repos.ChatRepo
	messages        repos.MessageRepo
	traces          repos.TraceRepo
	attachments     repos.AttachmentRepo
	shared          repos.SharedChatRepo
	agents          repos.AgentRepo
	personalization repos.PersonalizationRepo

	answers  answer.Usecases
	catalog  ModelCatalog
	bucket   gcs.BucketService
	registry *sse.StreamRegistry
	stopBus  redisclients.StopBus
}

type ChatServiceDeps struct {
	Log *logger.Logger
	PG  *db.PostgresService

	Chats           repos.ChatRepo
	Messages        repos.MessageRepo
	Traces          repos.TraceRepo
	Attachments     repos.AttachmentRepo
	Shared          repos.SharedChatRepo
	Agents          repos.AgentRepo
	Personalization repos.PersonalizationRepo

	Answers  answer.Usecases
	Catalog  ModelCatalog
	Bucket   gcs.BucketService
	Registry *sse.StreamRegistry
	StopBus  redisclients.StopBus
}

func NewChatService(d ChatServiceDeps) ChatService {
	return &chatService{
		log:             d.Log.With("service", "ChatService"),
		pg:              d.PG,
		chats:           d.Chats,
		messages:        d.Messages,
		traces:          d.Traces,
		attachments:     d.Attachments,
		shared:          d.Shared,
		agents:          d.Agents,
		personalization: d.Personalization,
		answers:         d.Answers,
		catalog:         d.Catalog,
		bucket:          d.Bucket,
		registry:        d.Registry,
		stopBus:         d.StopBus,
	}
}

func (s *chatService) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}

// contextPillRe matches in-message references like [file:abc123] or
// [thread:T42] inserted by the composer's context pills.
var contextPillRe = regexp.MustCompile(`\[(file|thread):([A-Za-z0-9._-]+)\]`)

func extractContextPills(message string) (clean string, fileIDs, threadIDs []string) {
	for _, m := range contextPillRe.FindAllStringSubmatch(message, -1) {
		switch m[1] {
		case "file":
			fileIDs = append(fileIDs, m[2])
		case "thread":
			threadIDs = append(threadIDs, m[2])
		}
	}
	clean = strings.TrimSpace(contextPillRe.ReplaceAllString(message, ""))
	if clean == "" {
		clean = message
	}
	return clean, fileIDs, threadIDs
}

// parseModelConfig accepts the UI's selectedModelConfig JSON in both its
/// shapes: capabilities as a string array or as a flag object.
func parseModelConfig(raw string) answer.ModelSettings {
	var cfg struct {
		Model        string          `json:"model"`
		Reasoning    bool            `json:"reasoning"`
		Websearch    bool            `json:"websearch"`
		DeepResearch bool            `json:"deepResearch"`
		Capabilities json.RawMessage `json:"capabilities"`
	}
	_ = json.Unmarshal([]byte(raw), &cfg)

	out := answer.ModelSettings{
		Model:        cfg.Model,
		Reasoning:    cfg.Reasoning,
		WebSearch:    cfg.Websearch,
		DeepResearch: cfg.DeepResearch,
	}
	if len(cfg.Capabilities) > 0 {
		var list []string
		if err := json.Unmarshal(cfg.Capabilities, &list); err == nil {
			for _, c := range list {
				switch strings.ToLower(c) {
				case "reasoning":
					out.Reasoning = true
				case "websearch":
					out.WebSearch = true
				case "deepresearch", "deep_research":
					out.DeepResearch = true
				}
			}
		} else {
			var flags struct {
				Reasoning    bool `json:"reasoning"`
				Websearch    bool `json:"websearch"`
				DeepResearch bool `json:"deepResearch"`
			}
			if err := json.Unmarshal(cfg.Capabilities, &flags); err == nil {
				out.Reasoning = out.Reasoning || flags.Reasoning
				out.WebSearch = out.WebSearch || flags.Websearch
				out.DeepResearch = out.DeepResearch || flags.DeepResearch
			}
		}
	}
	return out
}

// parseKbItems accepts selectedKbItems as either {fileIds, folderIds} or a
// list of {id, type} entries.
func parseKbItems(raw string) (fileIDs, folderIDs []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var obj struct {
		FileIDs   []string `json:"fileIds"`
		FolderIDs []string `json:"folderIds"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && (len(obj.FileIDs) > 0 || len(obj.FolderIDs) > 0) {
		return obj.FileIDs, obj.FolderIDs
	}
	var list []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		for _, item := range list {
			if strings.EqualFold(item.Type, "folder") {
				folderIDs = append(folderIDs, item.ID)
			} else {
				fileIDs = append(fileIDs, item.ID)
			}
		}
	}
	return fileIDs, folderIDs
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// fallbackTitle trims the first user message into a placeholder title.
func fallbackTitle(message string) string {
	message = strings.TrimSpace(message)
	words := strings.Fields(message)
	if len(words) > 6 {
		words = words[:6]
	}
	if len(words) == 0 {
		return "New chat"
	}
	return strings.Join(words, " ")
}

func attachmentObjectKey(workspaceID, chatExternalID, fileID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/%s", workspaceID, chatExternalID, fileID, fileName)
}

func (s *chatService) SendMessage(ctx context.Context, stream *sse.Stream, in SendMessageInput) error {
	if in.Agentic {
		stream.SendError("not_supported", "Agentic mode is not supported.")
		return stream.End()
	}

	settings := parseModelConfig(in.ModelConfig)
	modelID := s.catalog.Resolve(settings.Model, settings.DeepResearch)

	query, pillFileIDs, pillThreadIDs := extractContextPills(in.Message)
	kbFileIDs, kbFolderIDs := parseKbItems(in.KbItems)

	attachmentFileIDs := make([]string, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		attachmentFileIDs = append(attachmentFileIDs, a.FileID)
	}

	isNewChat := in.ChatExternalID == ""

	var (
		chatRow *types.Chat
		userMsg *types.Message
		history []*types.Message
	)
	err := s.pg.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if isNewChat {
			row := &types.Chat{
				ExternalID:  uuid.NewString(),
				WorkspaceID: in.User.WorkspaceID,
				UserID:      in.User.ID,
				Email:       in.User.Email,
				Title:       fallbackTitle(in.Message),
				Type:        types.ChatTypeDefault,
			}
			if len(kbFileIDs) > 0 || len(kbFolderIDs) > 0 {
				row.Type = types.ChatTypeKnowledgeBase
			}
			if in.AgentID != "" {
				row.AgentID = &in.AgentID
			}
			created, err := s.chats.Create(dbc, row)
			if err != nil {
				return err
			}
			chatRow = created
		} else {
			existing, err := s.chats.GetByExternalID(dbc, in.ChatExternalID)
			if err != nil {
				return err
			}
			if existing == nil || existing.UserID != in.User.ID {
				return apierr.New(404, "chat_not_found", fmt.Errorf("chat %s not found", in.ChatExternalID))
			}
			chatRow = existing
			if err := s.chats.UpdateFields(dbc, chatRow.ID, map[string]interface{}{"updated_at": time.Now()}); err != nil {
				return err
			}
			prior, err := s.messages.ListByChat(dbc, chatRow.ID, 0)
			if err != nil {
				return err
			}
			history = prior
		}

		msg := &types.Message{
			ExternalID: uuid.NewString(),
			ChatID:     chatRow.ID,
			UserID:     in.User.ID,
			Email:      in.User.Email,
			Role:       types.MessageRoleUser,
			Content:    in.Message,
			FileIDs:    toJSON(pillFileIDs),
			ThreadIDs:  toJSON(pillThreadIDs),
		}
		rows, err := s.messages.Create(dbc, []*types.Message{msg})
		if err != nil {
			return err
		}
		userMsg = rows[0]

		if len(in.Attachments) > 0 {
			attRows := make([]*types.MessageAttachment, 0, len(in.Attachments))
			for _, a := range in.Attachments {
				attRows = append(attRows, &types.MessageAttachment{
					MessageID: userMsg.ID,
					ChatID:    chatRow.ID,
					UserID:    in.User.ID,
					FileID:    a.FileID,
					FileName:  a.FileName,
					FileType:  a.FileType,
					FileSize:  a.FileSize,
					IsImage:   a.IsImage,
					ObjectKey: attachmentObjectKey(in.User.WorkspaceID, chatRow.ExternalID, a.FileID, a.FileName),
				})
			}
			if _, err := s.attachments.Create(dbc, attRows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("persist user message failed", "error", err)
		stream.SendError("persistence_failed", apierr.UserMessage(err))
		return stream.End()
	}

	if err := stream.Send(sse.EventResponseMetadata, map[string]any{"chatId": chatRow.ExternalID}); err != nil {
		return err
	}

	if isNewChat {
		// Placeholder goes out immediately; the title model runs off the
		// request path so the first answer token is never gated on it.
		if serr := stream.Send(sse.EventChatTitleUpdate, map[string]any{"chatId": chatRow.ExternalID, "title": chatRow.Title}); serr != nil {
			return serr
		}
		go s.upgradeTitle(stream, chatRow.ID, chatRow.ExternalID, in.Message)
	}

	s.storeAttachments(ctx, stream, chatRow, userMsg, in.Attachments)

	scope := answer.ScopedInput{
		KbFileIDs:         kbFileIDs,
		KbFolderIDs:       kbFolderIDs,
		FileIDs:           pillFileIDs,
		ThreadIDs:         pillThreadIDs,
		AttachmentFileIDs: attachmentFileIDs,
	}
	if agentScope := s.agentScope(ctx, chatRow, in.AgentID); !agentScope.Empty() && scope.Empty() {
		scope = agentScope
	}

	return s.generate(ctx, stream, chatRow, userMsg, toValueMessages(history), query, settings, modelID, scope, in.User.Timezone, assistantInsert{})
}

// upgradeTitle replaces the placeholder title once the title model
// returns. The stream may already have ended by then; the update is still
// persisted and the event is simply dropped.
func (s *chatService) upgradeTitle(stream *sse.Stream, chatID uuid.UUID, chatExternalID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	title := s.resolveTitle(ctx, message)
	if err := s.chats.UpdateFields(s.dbc(ctx), chatID, map[string]interface{}{"title": title}); err != nil {
		s.log.Warn("title update failed", "chatId", chatExternalID, "error", err)
		return
	}
	_ = stream.Send(sse.EventChatTitleUpdate, map[string]any{"chatId": chatExternalID, "title": title})
}

// resolveTitle asks the title model, falling back to a message excerpt.
func (s *chatService) resolveTitle(ctx context.Context, message string) string {
	title, err := s.answers.GenerateTitle(ctx, message)
	if err != nil || title == "" {
		return fallbackTitle(message)
	}
	return title
}

// assistantInsert controls how the generated answer is written back.
type assistantInsert struct {
	// CreatedAt pins the new row's timestamp; zero means now.
	CreatedAt time.Time
	// UpdateID rewrites an existing assistant row in place.
	UpdateID uuid.UUID
}

// generate runs the answer pipeline over an open stream, then persists the
// assistant message and trace. Every exit path emits End and removes the
// registry entry.
func (s *chatService) generate(ctx context.Context, stream *sse.Stream, chatRow *types.Chat, userMsg *types.Message, history []types.Message, query string, settings answer.ModelSettings, modelID string, scope answer.ScopedInput, timezone string, insert assistantInsert) error {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	entry := s.registry.Register(chatRow.ExternalID, cancel)
	defer s.registry.Unregister(entry)

	alpha := s.personalization.Alpha(s.dbc(ctx), userMsg.UserID, search.DefaultAlpha)

	span := answer.NewTrace("respond")
	span.Set("chatId", chatRow.ExternalID).Set("model", modelID)

	if err := stream.Send(sse.EventStart, nil); err != nil {
		return err
	}

	emitter := newStreamEmitter(stream)
	now := time.Now()
	out, genErr := s.answers.WithModel(modelID).Respond(genCtx, answer.RespondInput{
		Query:    query,
		Messages: history,
		User: answer.UserContext{
			UserID:      userMsg.UserID.String(),
			Email:       userMsg.Email,
			WorkspaceID: chatRow.WorkspaceID,
			Timezone:    timezone,
			NowMillis:   now.UnixMilli(),
		},
		Scope: scope,
		Model: settings,
		Alpha: alpha,
		Span:  span,
	}, emitter.emit)
	span.End()

	// Persist the classification on the user turn for follow-up routing.
	if out.Classification != nil {
		_ = s.messages.UpdateFields(s.dbc(ctx), userMsg.ID, map[string]interface{}{
			"classification": toJSON(out.Classification),
		})
	}

	// A stop request cancels genCtx; treat the resulting context.Canceled
	// as a premature close, not a generation failure.
	streamClosed := stream.Closed() || out.Outcome == answer.OutcomeStreamClosed ||
		(genCtx.Err() != nil && errors.Is(genErr, context.Canceled))
	var userErrPhrase string
	switch {
	case genErr != nil && !streamClosed:
		userErrPhrase = apierr.UserMessage(genErr)
		s.log.Error("answer generation failed", "chatId", chatRow.ExternalID, "error", genErr)
		stream.SendError(string(apierr.Classify(genErr)), userErrPhrase)
	case genErr == nil && !streamClosed && strings.TrimSpace(out.Text) == "":
		userErrPhrase = apierr.PhraseNoAnswer
		stream.SendError("no_answer", userErrPhrase)
	}
	if userErrPhrase != "" {
		_ = s.messages.UpdateFields(s.dbc(ctx), userMsg.ID, map[string]interface{}{
			"error_message": userErrPhrase,
		})
	}

	assistantID, perr := s.persistAssistant(ctx, chatRow, userMsg, out, modelID, insert)
	if perr != nil {
		s.log.Error("persist assistant message failed", "chatId", chatRow.ExternalID, "error", perr)
	}

	s.persistTrace(ctx, chatRow, assistantID, span)

	if assistantID != uuid.Nil {
		_ = stream.Send(sse.EventResponseMetadata, map[string]any{
			"chatId":    chatRow.ExternalID,
			"messageId": assistantID,
		})
	}
	return stream.End()
}

// persistAssistant inserts (or rewrites, on assistant retry) the answer row
// after the stream has ended.
func (s *chatService) persistAssistant(ctx context.Context, chatRow *types.Chat, userMsg *types.Message, out answer.RespondOutput, modelID string, insert assistantInsert) (uuid.UUID, error) {
	cost := costForUsage(out.Usage)
	dbc := s.dbc(ctx)

	if insert.UpdateID != uuid.Nil {
		err := s.messages.UpdateFields(dbc, insert.UpdateID, map[string]interface{}{
			"content":         out.Text,
			"thinking":        out.Thinking,
			"sources":         toJSON(out.Sources),
			"image_citations": toJSON(out.ImageCitations),
			"model_id":        modelID,
			"cost":            cost,
			"tokens_used":     out.Usage.Total(),
			"updated_at":      time.Now(),
		})
		return insert.UpdateID, err
	}

	row := &types.Message{
		ExternalID:     uuid.NewString(),
		ChatID:         chatRow.ID,
		UserID:         userMsg.UserID,
		Email:          userMsg.Email,
		Role:           types.MessageRoleAssistant,
		Content:        out.Text,
		Thinking:       out.Thinking,
		Sources:        toJSON(out.Sources),
		ImageCitations: toJSON(out.ImageCitations),
		ModelID:        modelID,
		Cost:           cost,
		TokensUsed:     out.Usage.Total(),
	}
	if !insert.CreatedAt.IsZero() {
		row.CreatedAt = insert.CreatedAt
		row.UpdatedAt = insert.CreatedAt
	}
	rows, err := s.messages.Create(dbc, []*types.Message{row})
	if err != nil {
		return uuid.Nil, err
	}
	return rows[0].ID, nil
}

func (s *chatService) persistTrace(ctx context.Context, chatRow *types.Chat, messageID uuid.UUID, span *answer.Span) {
	if messageID == uuid.Nil {
		return
	}
	_, err := s.traces.Create(s.dbc(ctx), &types.Trace{
		ChatID:      chatRow.ID,
		MessageID:   messageID,
		WorkspaceID: chatRow.WorkspaceID,
		UserID:      chatRow.UserID,
		TraceJSON:   datatypes.JSON(span.JSON()),
	})
	if err != nil {
		s.log.Warn("persist trace failed", "chatId", chatRow.ExternalID, "error", err)
	}
}

// storeAttachments uploads blobs best-effort. A storage failure never kills
// the stream; clients get a non-fatal Error event and generation continues.
func (s *chatService) storeAttachments(ctx context.Context, stream *sse.Stream, chatRow *types.Chat, userMsg *types.Message, uploads []AttachmentUpload) {
	if len(uploads) == 0 {
		return
	}
	stored := make([]map[string]any, 0, len(uploads))
	for _, a := range uploads {
		key := attachmentObjectKey(chatRow.WorkspaceID, chatRow.ExternalID, a.FileID, a.FileName)
		if err := s.bucket.Upload(ctx, key, bytes.NewReader(a.Data)); err != nil {
			s.log.Warn("attachment upload failed", "key", key, "error", err)
			stream.SendError("attachment_storage_failed", "Failed to store attachment "+a.FileName)
			continue
		}
		stored = append(stored, map[string]any{
			"fileId":   a.FileID,
			"fileName": a.FileName,
			"fileType": a.FileType,
			"fileSize": a.FileSize,
			"isImage":  a.IsImage,
		})
	}
	_ = stream.Send(sse.EventAttachmentUpdate, map[string]any{
		"messageId":   userMsg.ExternalID,
		"attachments": stored,
	})
}

// agentScope resolves the retrieval restriction of a bound agent.
func (s *chatService) agentScope(ctx context.Context, chatRow *types.Chat, requestAgentID string) answer.ScopedInput {
	agentID := requestAgentID
	if agentID == "" && chatRow.AgentID != nil {
		agentID = *chatRow.AgentID
	}
	if agentID == "" {
		return answer.ScopedInput{}
	}
	agent, err := s.agents.GetByExternalID(s.dbc(ctx), agentID)
	if err != nil || agent == nil {
		return answer.ScopedInput{}
	}
	out := answer.ScopedInput{KbFileIDs: decodeJSONStrings(agent.KbItems)}
	sel := search.AgentScope{
		Apps:       decodeJSONStrings(agent.AppIntegrations),
		DocIDs:     decodeJSONStrings(agent.DocIDs),
		ChannelIDs: decodeJSONStrings(agent.ChannelIDs),
	}
	if len(sel.Apps)+len(sel.DocIDs)+len(sel.ChannelIDs) > 0 {
		out.Agent = &sel
	}
	return out
}

func decodeJSONStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func toValueMessages(rows []*types.Message) []types.Message {
	out := make([]types.Message, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func costForUsage(u openai.Usage) float64 {
	inRate := envFloat("LLM_COST_INPUT_PER_1K", 0)
	outRate := envFloat("LLM_COST_OUTPUT_PER_1K", 0)
	return float64(u.InputTokens)/1000*inRate + float64(u.OutputTokens)/1000*outRate
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (s *chatService) Retry(ctx context.Context, stream *sse.Stream, in RetryInput) error {
	settings := parseModelConfig(in.ModelConfig)
	modelID := s.catalog.Resolve(settings.Model, settings.DeepResearch)
	dbc := s.dbc(ctx)

	target, err := s.messages.GetByExternalID(dbc, in.MessageExternalID)
	if err != nil || target == nil {
		stream.SendError("message_not_found", apierr.PhraseGeneric)
		return stream.End()
	}
	chatRow, err := s.chats.GetByID(dbc, target.ChatID)
	if err != nil || chatRow == nil || chatRow.UserID != in.User.ID {
		stream.SendError("chat_not_found", apierr.PhraseGeneric)
		return stream.End()
	}

	all, err := s.messages.ListByChat(dbc, chatRow.ID, 0)
	if err != nil {
		stream.SendError("persistence_failed", apierr.UserMessage(err))
		return stream.End()
	}

	if err := stream.Send(sse.EventResponseMetadata, map[string]any{"chatId": chatRow.ExternalID}); err != nil {
		return err
	}

	var (
		userMsg *types.Message
		history []types.Message
		insert  assistantInsert
		query   string
	)
	if target.Role == types.MessageRoleUser {
		// Regenerate the reply to this user turn: new assistant row
		// pinned right after the user message.
		userMsg = target
		for _, m := range all {
			if m.CreatedAt.Before(target.CreatedAt) {
				history = append(history, *m)
			}
		}
		query, _, _ = extractContextPills(target.Content)
		insert = assistantInsert{CreatedAt: target.CreatedAt.Add(time.Millisecond)}

		_ = s.messages.UpdateFields(dbc, target.ID, map[string]interface{}{"error_message": ""})
		if old, oerr := s.messages.AssistantAfter(dbc, chatRow.ID, target.CreatedAt); oerr == nil && old != nil {
			_ = s.messages.UpdateFields(dbc, old.ID, map[string]interface{}{"deleted_at": time.Now()})
		}
	} else {
		// Regenerate an assistant turn in place using the conversation
		// strictly before it.
		insert = assistantInsert{UpdateID: target.ID}
		for _, m := range all {
			if m.CreatedAt.Before(target.CreatedAt) {
				if m.Role == types.MessageRoleUser {
					userMsg = m
				}
				history = append(history, *m)
			}
		}
		if userMsg == nil {
			stream.SendError("message_not_found", apierr.PhraseGeneric)
			return stream.End()
		}
		// The prompting user turn is context for routing, not history.
		if len(history) > 0 && history[len(history)-1].Role == types.MessageRoleUser {
			history = history[:len(history)-1]
		}
		query, _, _ = extractContextPills(userMsg.Content)
	}

	_, pillFileIDs, pillThreadIDs := extractContextPills(userMsg.Content)
	scope := answer.ScopedInput{FileIDs: pillFileIDs, ThreadIDs: pillThreadIDs}
	// A retried turn keeps its original uploads in scope.
	if atts, aerr := s.attachments.ListByMessage(dbc, userMsg.ID); aerr == nil {
		for _, a := range atts {
			scope.AttachmentFileIDs = append(scope.AttachmentFileIDs, a.FileID)
		}
	}
	return s.generate(ctx, stream, chatRow, userMsg, history, query, settings, modelID, scope, in.User.Timezone, insert)
}

func (s *chatService) Stop(ctx context.Context, chatExternalID string) bool {
	stopped := s.registry.Stop(chatExternalID)
	if s.stopBus != nil {
		if err := s.stopBus.Publish(ctx, redisclients.StopRequest{ChatID: chatExternalID}); err != nil {
			s.log.Warn("stop publish failed", "chatId", chatExternalID, "error", err)
		}
	}
	return stopped
}

func (s *chatService) ownedChat(ctx context.Context, user RequestUser, chatExternalID string) (*types.Chat, error) {
	chatRow, err := s.chats.GetByExternalID(s.dbc(ctx), chatExternalID)
	if err != nil {
		return nil, err
	}
	if chatRow == nil || chatRow.UserID != user.ID {
		return nil, apierr.New(404, "chat_not_found", fmt.Errorf("chat %s not found", chatExternalID))
	}
	return chatRow, nil
}

func (s *chatService) GetChat(ctx context.Context, user RequestUser, chatExternalID string) (*ChatWithMessages, error) {
	chatRow, err := s.ownedChat(ctx, user, chatExternalID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChat(s.dbc(ctx), chatRow.ID, 0)
	if err != nil {
		return nil, err
	}
	return &ChatWithMessages{Chat: chatRow, Messages: msgs}, nil
}

func (s *chatService) History(ctx context.Context, user RequestUser, limit, offset int) ([]*types.Chat, error) {
	return s.chats.ListByUser(s.dbc(ctx), user.ID, limit, offset)
}

func (s *chatService) Favorites(ctx context.Context, user RequestUser, limit, offset int) ([]*types.Chat, error) {
	return s.chats.ListBookmarked(s.dbc(ctx), user.ID, limit, offset)
}

func (s *chatService) Rename(ctx context.Context, user RequestUser, chatExternalID, title string) error {
	chatRow, err := s.ownedChat(ctx, user, chatExternalID)
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return apierr.New(400, "invalid_title", fmt.Errorf("empty title"))
	}
	return s.chats.UpdateFields(s.dbc(ctx), chatRow.ID, map[string]interface{}{"title": title})
}

func (s *chatService) Bookmark(ctx context.Context, user RequestUser, chatExternalID string, bookmarked bool) error {
	chatRow, err := s.ownedChat(ctx, user, chatExternalID)
	if err != nil {
		return err
	}
	return s.chats.UpdateFields(s.dbc(ctx), chatRow.ID, map[string]interface{}{"is_bookmarked": bookmarked})
}

// Delete removes the chat and everything hanging off it in one
// transaction, then drops attachment blobs outside it, best-effort.
func (s *chatService) Delete(ctx context.Context, user RequestUser, chatExternalID string) error {
	chatRow, err := s.ownedChat(ctx, user, chatExternalID)
	if err != nil {
		return err
	}
	err = s.pg.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.shared.DeleteByChat(dbc, chatRow.ID); err != nil {
			return err
		}
		if err := s.traces.DeleteByChat(dbc, chatRow.ID); err != nil {
			return err
		}
		if err := s.attachments.DeleteByChat(dbc, chatRow.ID); err != nil {
			return err
		}
		if err := s.messages.DeleteByChat(dbc, chatRow.ID); err != nil {
			return err
		}
		return s.chats.Delete(dbc, chatRow.ID)
	})
	if err != nil {
		return err
	}

	go func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		prefix := chatRow.WorkspaceID + "/" + chatRow.ExternalID + "/"
		if derr := s.bucket.DeletePrefix(cleanupCtx, prefix); derr != nil {
			s.log.Warn("attachment blob cleanup failed", "chatId", chatRow.ExternalID, "error", derr)
		}
	}()
	return nil
}

func (s *chatService) Trace(ctx context.Context, user RequestUser, chatExternalID string) (*types.Trace, error) {
	chatRow, err := s.ownedChat(ctx, user, chatExternalID)
	if err != nil {
		return nil, err
	}
	trace, err := s.traces.GetLatestByChat(s.dbc(ctx), chatRow.ID)
	if err != nil {
		return nil, err
	}
	if trace == nil {
		return nil, apierr.New(404, "trace_not_found", fmt.Errorf("no trace for chat %s", chatExternalID))
	}
	return trace, nil
}

func (s *chatService) Feedback(ctx context.Context, in FeedbackInput) (string, error) {
	dbc := s.dbc(ctx)
	msg, err := s.messages.GetByExternalID(dbc, in.MessageExternalID)
	if err != nil || msg == nil {
		return "", apierr.New(404, "message_not_found", fmt.Errorf("message %s not found", in.MessageExternalID))
	}
	chatRow, err := s.chats.GetByID(dbc, msg.ChatID)
	if err != nil || chatRow == nil || chatRow.UserID != in.User.ID {
		return "", apierr.New(404, "chat_not_found", fmt.Errorf("chat for message %s not found", in.MessageExternalID))
	}

	var shareToken string
	fb := types.MessageFeedback{Type: in.Type, Feedback: in.Feedback}
	if in.ShareChat {
		shareToken = uuid.NewString()
		hash, herr := bcrypt.GenerateFromPassword([]byte(shareToken), bcrypt.DefaultCost)
		if herr != nil {
			return "", herr
		}
		if _, cerr := s.shared.Create(dbc, &types.SharedChat{
			ChatID:    chatRow.ID,
			UserID:    in.User.ID,
			TokenHash: string(hash),
		}); cerr != nil {
			return "", cerr
		}
		fb.ShareChat = &shareToken
	}

	if err := s.messages.UpdateFields(dbc, msg.ID, map[string]interface{}{"feedback": toJSON(fb)}); err != nil {
		return "", err
	}
	return shareToken, nil
}

func (s *chatService) FollowUpQuestions(ctx context.Context, user RequestUser, chatExternalID string) ([]string, error) {
	chatRow, err := s.ownedChat(ctx, user, chatExternalID)
	if err != nil {
		return nil, err
	}
	dbc := s.dbc(ctx)
	lastUser, err := s.messages.LastUserMessage(dbc, chatRow.ID)
	if err != nil || lastUser == nil {
		return nil, apierr.New(404, "message_not_found", fmt.Errorf("chat %s has no user message", chatExternalID))
	}
	assistant, err := s.messages.AssistantAfter(dbc, chatRow.ID, lastUser.CreatedAt)
	if err != nil || assistant == nil {
		return nil, apierr.New(404, "message_not_found", fmt.Errorf("chat %s has no answered turn", chatExternalID))
	}
	return s.answers.SuggestFollowUps(ctx, lastUser.Content, assistant.Content)
}

func (s *chatService) RegenerateTitle(ctx context.Context, user RequestUser, chatExternalID string) (string, error) {
	chatRow, err := s.ownedChat(ctx, user, chatExternalID)
	if err != nil {
		return "", err
	}
	lastUser, err := s.messages.LastUserMessage(s.dbc(ctx), chatRow.ID)
	if err != nil || lastUser == nil {
		return "", apierr.New(404, "message_not_found", fmt.Errorf("chat %s has no user message", chatExternalID))
	}
	title, err := s.answers.GenerateTitle(ctx, lastUser.Content)
	if err != nil {
		return "", err
	}
	if err := s.chats.UpdateFields(s.dbc(ctx), chatRow.ID, map[string]interface{}{"title": title}); err != nil {
		return "", err
	}
	return title, nil
}
