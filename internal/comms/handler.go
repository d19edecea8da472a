package comms

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/portal-desk/internal/backend"
)

type Handler struct {
	inbox *Inbox
	hub   *Hub
}

func NewHandler(inbox *Inbox, hub *Hub) *Handler {
	return &Handler{inbox: inbox, hub: hub}
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.inbox.State())
}

func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	list := h.inbox.Conversations()
	writeJSON(w, http.StatusOK, ConversationsUpdate{
		Conversations: list.Snapshot(),
		TotalUnread:   list.Total(),
	})
}

// Select never fails the request on a fetch error: the pane just stays empty.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if k, err := url.PathUnescape(key); err == nil {
		key = k
	}
	if err := h.inbox.Select(r.Context(), key); errors.Is(err, ErrNoConversation) {
		writeError(w, http.StatusBadRequest, "Selecciona una conversación.")
		return
	}
	writeJSON(w, http.StatusOK, h.inbox.State())
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.inbox.Pane().Snapshot())
}

func (h *Handler) Older(w http.ResponseWriter, r *http.Request) {
	n, _ := h.inbox.LoadOlder(r.Context())
	snap := h.inbox.Pane().Snapshot()
	snap.Prepended = n
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	msg, err := h.inbox.Send(r.Context(), payload.Body)
	switch {
	case errors.Is(err, ErrEmptyBody):
		writeError(w, http.StatusBadRequest, "El mensaje está vacío.")
	case errors.Is(err, ErrNoConversation):
		writeError(w, http.StatusConflict, "Selecciona una conversación.")
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   backend.UserMessage(err),
			"message": msg,
		})
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"message": msg})
	}
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	draft, err := h.inbox.SuggestReply(r.Context())
	switch {
	case errors.Is(err, ErrAssistDisabled):
		writeError(w, http.StatusNotImplemented, "El asistente no está configurado.")
	case errors.Is(err, ErrNoConversation):
		writeError(w, http.StatusConflict, "Selecciona una conversación.")
	case err != nil:
		writeError(w, http.StatusBadGateway, "No se pudo generar una sugerencia.")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"draft": draft})
	}
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		key = h.inbox.Pane().Key()
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := h.inbox.History(r.Context(), key, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No se pudo cargar el historial.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "entries": entries})
}

func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
