// Package handler wires the HTTP surface: auth endpoints, the WebSocket
// upgrade path, and static avatar serving.
package handler

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"chat-server/domain"
	"chat-server/errors"
	"chat-server/services"

	"github.com/gorilla/mux"
)

type Handler struct {
	log  *slog.Logger
	auth services.IAuthService
}

func New(log *slog.Logger, auth services.IAuthService) *Handler {
	return &Handler{log: log, auth: auth}
}

// SetupRouter configures and returns the HTTP router. The socket handler
// is mounted as-is; uploadDir is exposed read-only for avatar display.
func (h *Handler) SetupRouter(socket http.Handler, uploadDir string) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")

	r.Handle("/ws", socket).Methods("GET")

	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	return r
}

type registerRequest struct {
	Name     string `json:"name"`
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool           `json:"success"`
	Token   services.Token `json:"token,omitempty"`
	User    *domain.User   `json:"user,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidation("body", "malformed json"))
		return
	}

	token, user, err := h.auth.Register(req.Name, req.Handle, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, authResponse{Success: true, Token: token, User: &user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidation("body", "malformed json"))
		return
	}

	token, user, err := h.auth.Login(req.Handle, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, authResponse{Success: true, Token: token, User: &user})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if v, ok := errors.AsValidation(err); ok {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"errors":  v.Fields,
		})
		return
	}
	if stderrors.Is(err, errors.ErrInvalidCredentials) {
		h.writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"msg":     "invalid credentials",
		})
		return
	}
	h.log.Error("auth request failed", "error", err)
	h.writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"msg":     "internal server error",
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("write response failed", "error", err)
	}
}
