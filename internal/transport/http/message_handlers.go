package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"talentlink/internal/domain"
	"talentlink/internal/dto"
)

const (
	defaultConversationLimit = 50
	defaultSearchLimit       = 20
)

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrAuthRequired)
	}
	return user, ok
}

func (h *Handler) issueTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	ticket, ttl, err := h.tickets.Issue(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TicketResponse{Ticket: ticket, ExpiresIn: int64(ttl.Seconds())})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := h.messages.Send(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	partners, err := h.messages.Conversations(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	otherID, err := pathUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultConversationLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := h.messages.Conversation(r.Context(), user.ID, otherID, skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	otherID, err := pathUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.messages.MarkRead(r.Context(), user.ID, otherID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.messages.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.UnreadCountResponse{UnreadCount: n})
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", defaultSearchLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := h.messages.SearchUsers(r.Context(), user.ID, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
