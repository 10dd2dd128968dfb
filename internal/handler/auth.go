package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/service"
)

// AuthHandler exchanges a login payload for a bearer token.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: logger}
}

// HandleIssueToken signs a credential for the posted identity.
//
// HTTP: POST /jwt
// REQUEST BODY: {"email": "a@x.com", "name": "A", "photo": "https://..."}
// RESPONSE:     {"token": "<jwt>"}
func (h *AuthHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var id auth.Identity
	if err := decodeJSON(w, r, &id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	token, err := h.auth.IssueToken(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
