package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/infra/logging"
)

// ===== Response shapes =====

type chatResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	CounsellorID    *int64     `json:"counsellor_id,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	BilledAmount    int64      `json:"billed_amount"`
	IsBilled        bool       `json:"is_billed"`
}

type messageResponse struct {
	ID              int64     `json:"id"`
	ChatID          int64     `json:"chat_id"`
	SenderID        int64     `json:"sender_id"`
	Text            string    `json:"text"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toChatResponse(c *model.Chat) chatResponse {
	return chatResponse{
		ID:              c.ID,
		UserID:          c.UserID,
		CounsellorID:    c.CounsellorID,
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt,
		StartedAt:       c.StartedAt,
		EndedAt:         c.EndedAt,
		DurationMinutes: c.DurationMinutes,
		BilledAmount:    c.BilledAmount,
		IsBilled:        c.IsBilled,
	}
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:              m.ID,
		ChatID:          m.ChatID,
		SenderID:        m.SenderID,
		Text:            m.Text,
		ClientMessageID: m.ClientMessageID,
		CreatedAt:       m.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps domain sentinels to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAccessDenied):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrChatNotActive):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "chat is not active", "chat_expired": true})
	case errors.Is(err, domain.ErrOpenChatExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func chatIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return id, nil
}

// ===== Chat handlers =====

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	chat, err := s.chatUC.CreateChat(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrOpenChatExists) && chat != nil {
			// The caller already has an open chat; return it instead of a new one.
			writeJSON(w, http.StatusConflict, toChatResponse(chat))
			return
		}
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	chats, err := s.chatUC.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]chatResponse, 0, len(chats))
	for _, c := range chats {
		out = append(out, toChatResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listQueued(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	chats, err := s.chatUC.ListQueued(r.Context(), claims.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]chatResponse, 0, len(chats))
	for _, c := range chats {
		out = append(out, toChatResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	id, err := chatIDParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	claims := claimsFrom(r.Context())
	chat, err := s.chatUC.GetChat(r.Context(), id, claims.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(chat))
}

func (s *Server) acceptChat(w http.ResponseWriter, r *http.Request) {
	id, err := chatIDParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	claims := claimsFrom(r.Context())
	chat, err := s.chatUC.Accept(r.Context(), id, claims.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(chat))
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := chatIDParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	claims := claimsFrom(r.Context())
	msgs, chat, err := s.chatUC.ListMessages(r.Context(), id, claims.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat":     toChatResponse(chat),
		"messages": out,
	})
}

type sendMessageRequest struct {
	Message         string `json:"message"`
	ClientMessageID string `json:"client_message_id"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := chatIDParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	claims := claimsFrom(r.Context())
	out, err := s.chatUC.SendMessage(r.Context(), id, claims.UserID, req.Message, req.ClientMessageID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if out.Duplicate {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "duplicate",
			"client_message_id": req.ClientMessageID,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "sent",
		"message": toMessageResponse(out.Message),
	})
}

func (s *Server) completeChat(w http.ResponseWriter, r *http.Request) {
	s.closeChat(w, r, true)
}

func (s *Server) cancelChat(w http.ResponseWriter, r *http.Request) {
	s.closeChat(w, r, false)
}

func (s *Server) closeChat(w http.ResponseWriter, r *http.Request, complete bool) {
	id, err := chatIDParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	claims := claimsFrom(r.Context())
	var chat *model.Chat
	if complete {
		chat, err = s.chatUC.Complete(r.Context(), id, claims.UserID)
	} else {
		chat, err = s.chatUC.Cancel(r.Context(), id, claims.UserID)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(chat))
}

// ===== Wallet handlers =====

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	balance, err := s.walletUC.Balance(r.Context(), claims.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{"balance": balance}
	// Attach the running cost of the caller's open chat, if any.
	if chat, err := s.chatUC.ListForUser(r.Context(), claims.UserID); err == nil {
		for _, c := range chat {
			if c.Status == model.ChatActive {
				if est, err := s.billing.EstimateCost(r.Context(), c.ID); err == nil {
					resp["active_chat"] = map[string]any{
						"chat_id":           c.ID,
						"estimated_minutes": est.Minutes,
						"estimated_amount":  est.Amount,
					}
				}
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) topUpWallet(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	claims := claimsFrom(r.Context())
	balance, err := s.walletUC.TopUp(r.Context(), claims.UserID, req.Amount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}
