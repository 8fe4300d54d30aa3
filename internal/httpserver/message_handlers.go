package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatbackend/internal/domain"
	"chatbackend/internal/service"
)

type sendMessageRequest struct {
	ChatID      string              `json:"chatId"`
	Text        string              `json:"text"`
	Type        string              `json:"type"`
	Attachments []domain.Attachment `json:"attachments"`
}

func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON body"})
			return
		}
		if req.ChatID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "chatId is required"})
			return
		}

		msg, err := msgSvc.Send(r.Context(), currentUser.ID, service.MessageCreateInput{
			ChatID:      req.ChatID,
			Text:        req.Text,
			Type:        req.Type,
			Attachments: req.Attachments,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		chatID := chi.URLParam(r, "chatID")
		msgs, err := msgSvc.History(r.Context(), currentUser.ID, chatID)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []*domain.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleMarkSeen(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		chatID := chi.URLParam(r, "chatID")
		if err := msgSvc.MarkSeen(r.Context(), currentUser.ID, chatID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Messages marked as seen"})
	}
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func handleReaction(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		messageID := chi.URLParam(r, "messageID")
		var req reactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON body"})
			return
		}
		msg, err := msgSvc.React(r.Context(), currentUser.ID, messageID, req.Emoji)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}
