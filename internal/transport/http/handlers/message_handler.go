package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
	"github.com/vedran77/reviewhub/internal/unread"
	"github.com/vedran77/reviewhub/pkg/logger"
	"github.com/vedran77/reviewhub/pkg/validator"
)

type MessageHandler struct {
	messageService      *service.MessageService
	conversationService *service.ConversationService
	typingService       *service.TypingService
}

func NewMessageHandler(
	messageService *service.MessageService,
	conversationService *service.ConversationService,
	typingService *service.TypingService,
) *MessageHandler {
	return &MessageHandler{
		messageService:      messageService,
		conversationService: conversationService,
		typingService:       typingService,
	}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type typingRequest struct {
	IsTyping bool `json:"is_typing"`
}

func partnerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("partnerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid partner ID")
		return uuid.Nil, false
	}
	return id, true
}

// writeMessagingError maps messaging sentinels to responses.
func writeMessagingError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLong):
		writeValidationErrors(w, validator.ValidationErrors{"text": err.Error()})
	case errors.Is(err, service.ErrMissingParticipant):
		writeError(w, http.StatusBadRequest, "MISSING_PARTICIPANT", "Sender and receiver are required")
	case errors.Is(err, service.ErrSelfMessage):
		writeError(w, http.StatusBadRequest, "SELF_MESSAGE", "You cannot message yourself")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	default:
		writeInternal(w, op, err)
	}
}

func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	filter := service.ConversationFilter{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("history_only"); v != "" {
		historyOnly, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "history_only must be a boolean")
			return
		}
		filter.HistoryOnly = historyOnly
	}

	entries, err := h.conversationService.List(r.Context(), middleware.GetUserID(r.Context()), filter)
	if err != nil {
		writeMessagingError(w, "list conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	partner, ok := partnerID(w, r)
	if !ok {
		return
	}

	msgs, err := h.messageService.History(r.Context(), middleware.GetUserID(r.Context()), partner)
	if err != nil {
		writeMessagingError(w, "message history", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	partner, ok := partnerID(w, r)
	if !ok {
		return
	}

	var input sendMessageRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateMessage(input.Text); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	viewer := middleware.GetUserID(r.Context())
	msg, err := h.messageService.Send(r.Context(), viewer, partner, input.Text)
	if err != nil {
		writeMessagingError(w, "send message", err)
		return
	}

	// a sent message ends the sender's typing state
	if err := h.typingService.SetTyping(r.Context(), viewer, partner, false); err != nil {
		logger.Warn().Err(err).Str("viewer", viewer.String()).Msg("http: clearing typing after send failed")
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	partner, ok := partnerID(w, r)
	if !ok {
		return
	}

	n, err := h.messageService.MarkRead(r.Context(), middleware.GetUserID(r.Context()), partner)
	if err != nil {
		writeMessagingError(w, "mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	n, err := h.messageService.UnreadCountFor(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeMessagingError(w, "unread count", err)
		return
	}
	writeJSON(w, http.StatusOK, unread.Status{Count: n, HasUnread: n > 0})
}

func (h *MessageHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	partner, ok := partnerID(w, r)
	if !ok {
		return
	}

	var input typingRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.typingService.SetTyping(r.Context(), middleware.GetUserID(r.Context()), partner, input.IsTyping); err != nil {
		writeMessagingError(w, "set typing", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
