package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/quoteboard/pairing-server/internal/audit"
	apperrors "github.com/quoteboard/pairing-server/internal/errors"
	"github.com/quoteboard/pairing-server/internal/middleware"
	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/repository"
	"github.com/quoteboard/pairing-server/internal/service"
)

type AuthHandler struct {
	pairingService *service.PairingService
	users          repository.UserRepository
	auth           *middleware.AuthMiddleware
	loginMW        chi.Middlewares
}

func NewAuthHandler(
	pairingService *service.PairingService,
	users repository.UserRepository,
	auth *middleware.AuthMiddleware,
	loginMW chi.Middlewares,
) *AuthHandler {
	return &AuthHandler{
		pairingService: pairingService,
		users:          users,
		auth:           auth,
		loginMW:        loginMW,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginMW...).Post("/login", h.Login)
	r.With(h.auth.Handler).Get("/me", h.Me)

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.pairingService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeInvalidCredentials) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLoginSuccess,
		UserID: result.Identity.ID,
	})
	writeJSON(w, http.StatusOK, result)
}

// GET /v1/auth/me
//
// Reads the account behind the token so a deleted user stops being
// reported as signed in.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Sign in required"))
		return
	}

	user, err := h.users.FindByID(r.Context(), identity.ID)
	if err != nil {
		log.Error().Err(err).Msg("load current user")
		writeError(w, apperrors.Database(err))
		return
	}
	if user == nil {
		writeError(w, apperrors.Unauthorized("Account no longer exists"))
		return
	}

	writeJSON(w, http.StatusOK, model.Identity{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
}
