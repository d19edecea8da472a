package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Handler struct {
	session *Session
	guard   *Guard
}

func NewHandler(session *Session, guard *Guard) *Handler {
	return &Handler{session: session, guard: guard}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, sid, err := h.session.StartSession(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Correo o contraseña incorrectos.")
			return
		}
		writeError(w, http.StatusBadGateway, "No se pudo iniciar sesión. Inténtalo de nuevo.")
		return
	}

	h.guard.setCookie(w, sid)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": u,
		"home": h.guard.Home(u.Role),
	})
}

// Logout only honours the browser that holds the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.guard.User(r) == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.session.Logout(r.Context())
	h.guard.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := h.guard.User(r)
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
