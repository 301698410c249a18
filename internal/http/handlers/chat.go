package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seekwell/seekwell-backend/internal/http/response"
	"github.com/seekwell/seekwell-backend/internal/pkg/ctxutil"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
	"github.com/seekwell/seekwell-backend/internal/services"
	"github.com/seekwell/seekwell-backend/internal/sse"
)

type ChatHandler struct {
	log   *logger.Logger
	chats services.ChatService
}

func NewChatHandler(log *logger.Logger, chats services.ChatService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chats: chats}
}

func requestUser(c *gin.Context) (services.RequestUser, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		return services.RequestUser{}, false
	}
	return services.RequestUser{
		ID:          rd.UserID,
		Email:       rd.Email,
		WorkspaceID: rd.WorkspaceID,
		Timezone:    rd.Timezone,
	}, true
}

type attachmentBody struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
	IsImage  bool   `json:"isImage"`
	Data     string `json:"data"` // base64
}

type messageBody struct {
	Attachments []attachmentBody `json:"attachments"`
}

// Message handles POST /chat/message: query parameters carry the message
// and configuration, the body carries attachment payloads, and the reply is
// an SSE stream.
func (h *ChatHandler) Message(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	message := c.Query("message")
	if message == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing message"))
		return
	}

	var body messageBody
	_ = c.ShouldBindJSON(&body)

	in := services.SendMessageInput{
		User:           user,
		Message:        message,
		ChatExternalID: c.Query("chatId"),
		ModelConfig:    c.Query("selectedModelConfig"),
		KbItems:        c.Query("selectedKbItems"),
		AgentID:        c.Query("agentId"),
		Agentic:        c.Query("agentic") == "true",
	}
	for _, a := range body.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			h.log.Warn("attachment decode failed", "fileId", a.FileID, "error", err)
			continue
		}
		in.Attachments = append(in.Attachments, services.AttachmentUpload{
			FileID:   a.FileID,
			FileName: a.FileName,
			FileType: a.FileType,
			FileSize: a.FileSize,
			IsImage:  a.IsImage,
			Data:     data,
		})
	}

	stream, err := sse.NewStream(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}
	if err := h.chats.SendMessage(c.Request.Context(), stream, in); err != nil {
		h.log.Warn("message stream ended with error", "error", err)
	}
}

func (h *ChatHandler) Retry(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	messageID := c.Query("messageId")
	modelConfig := c.Query("selectedModelConfig")
	if messageID == "" {
		var body struct {
			MessageID   string `json:"messageId"`
			ModelConfig string `json:"selectedModelConfig"`
		}
		_ = c.ShouldBindJSON(&body)
		messageID = body.MessageID
		modelConfig = body.ModelConfig
	}
	if messageID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing messageId"))
		return
	}

	stream, err := sse.NewStream(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}
	in := services.RetryInput{
		User:              user,
		MessageExternalID: messageID,
		ModelConfig:       modelConfig,
	}
	if err := h.chats.Retry(c.Request.Context(), stream, in); err != nil {
		h.log.Warn("retry stream ended with error", "error", err)
	}
}

// Stop is a 200 no-op when the chat has no live stream.
func (h *ChatHandler) Stop(c *gin.Context) {
	var body struct {
		ChatID string `json:"chatId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	h.chats.Stop(c.Request.Context(), body.ChatID)
	response.OK(c, gin.H{"success": true})
}

func (h *ChatHandler) Get(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	chatID := c.Query("chatId")
	if chatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	out, err := h.chats.GetChat(c.Request.Context(), user, chatID)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, out)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *ChatHandler) History(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	limit, offset := pagination(c)
	chats, err := h.chats.History(c.Request.Context(), user, limit, offset)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, gin.H{"chats": chats})
}

func (h *ChatHandler) Favorites(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	limit, offset := pagination(c)
	chats, err := h.chats.Favorites(c.Request.Context(), user, limit, offset)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, gin.H{"chats": chats})
}

func (h *ChatHandler) Rename(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var body struct {
		ChatID string `json:"chatId"`
		Title  string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	if err := h.chats.Rename(c.Request.Context(), user, body.ChatID, body.Title); err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}

func (h *ChatHandler) Delete(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var body struct {
		ChatID string `json:"chatId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	if err := h.chats.Delete(c.Request.Context(), user, body.ChatID); err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}

func (h *ChatHandler) Bookmark(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var body struct {
		ChatID     string `json:"chatId"`
		Bookmarked *bool  `json:"bookmarked"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	bookmarked := true
	if body.Bookmarked != nil {
		bookmarked = *body.Bookmarked
	}
	if err := h.chats.Bookmark(c.Request.Context(), user, body.ChatID, bookmarked); err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}

func (h *ChatHandler) Trace(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	chatID := c.Query("chatId")
	if chatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	trace, err := h.chats.Trace(c.Request.Context(), user, chatID)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, trace)
}

func (h *ChatHandler) Feedback(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var body struct {
		MessageID string   `json:"messageId"`
		Type      string   `json:"type"`
		Feedback  []string `json:"feedback"`
		ShareChat bool     `json:"shareChat"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.MessageID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing messageId"))
		return
	}
	if body.Type != "like" && body.Type != "dislike" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("type must be like or dislike"))
		return
	}
	token, err := h.chats.Feedback(c.Request.Context(), services.FeedbackInput{
		User:              user,
		MessageExternalID: body.MessageID,
		Type:              body.Type,
		Feedback:          body.Feedback,
		ShareChat:         body.ShareChat,
	})
	if err != nil {
		response.FromErr(c, err)
		return
	}
	out := gin.H{"success": true}
	if token != "" {
		out["shareToken"] = token
	}
	response.OK(c, out)
}

func (h *ChatHandler) FollowUpQuestions(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var body struct {
		ChatID string `json:"chatId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	questions, err := h.chats.FollowUpQuestions(c.Request.Context(), user, body.ChatID)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, gin.H{"questions": questions})
}

func (h *ChatHandler) Title(c *gin.Context) {
	user, ok := requestUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	var body struct {
		ChatID string `json:"chatId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing chatId"))
		return
	}
	title, err := h.chats.RegenerateTitle(c.Request.Context(), user, body.ChatID)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.OK(c, gin.H{"title": title})
}
