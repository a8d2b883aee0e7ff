package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/quoteboard/pairing-server/internal/audit"
	apperrors "github.com/quoteboard/pairing-server/internal/errors"
	"github.com/quoteboard/pairing-server/internal/httputil"
	"github.com/quoteboard/pairing-server/internal/middleware"
	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/qr"
	"github.com/quoteboard/pairing-server/internal/service"
)

// PairingMiddleware holds per-route middleware, e.g. rate limits.
type PairingMiddleware struct {
	Create  chi.Middlewares
	Approve chi.Middlewares
}

type PairingHandler struct {
	pairingService *service.PairingService
	qr             *qr.Encoder
	mw             PairingMiddleware
}

func NewPairingHandler(pairingService *service.PairingService, encoder *qr.Encoder, mw PairingMiddleware) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
		qr:             encoder,
		mw:             mw,
	}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.mw.Create...).Post("/", h.Create)
	r.Get("/{code}", h.Describe)
	r.Get("/{code}/status", h.Status)
	r.Get("/{code}/qr.png", h.QRCode)
	r.With(h.mw.Approve...).Post("/{code}/approve", h.Approve)

	return r
}

// POST /v1/pairing
func (h *PairingHandler) Create(w http.ResponseWriter, r *http.Request) {
	created, err := h.pairingService.CreatePairing(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type: audit.EventPairingCreate,
		Code: created.Code,
	})
	writeJSON(w, http.StatusCreated, created)
}

// GET /v1/pairing/{code}
func (h *PairingHandler) Describe(w http.ResponseWriter, r *http.Request) {
	view, err := h.pairingService.Describe(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /v1/pairing/{code}/status
func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.pairingService.CheckStatus(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	if view.Token != "" {
		event := audit.Event{Type: audit.EventPairingConsume, Code: chi.URLParam(r, "code")}
		if view.Identity != nil {
			event.UserID = view.Identity.ID
		}
		audit.LogFromRequest(r, event)
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /v1/pairing/{code}/qr.png?size=256
func (h *PairingHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	view, err := h.pairingService.Describe(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	if view.Status.Terminal() {
		writeError(w, apperrors.New(apperrors.ErrCodePairingExpired, "Pairing code is no longer active"))
		return
	}

	size := qr.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.InvalidInput("size", "must be an integer"))
			return
		}
		size = n
	}

	png, err := h.qr.PNG(h.pairingService.PairingURL(view.Code), size)
	if err != nil {
		log.Error().Err(err).Msg("render pairing qr code")
		writeError(w, apperrors.Internal("Could not render QR code"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

type approveRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type approveResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// POST /v1/pairing/{code}/approve
//
// Body {email, password}, or an empty body with a bearer token.
func (h *PairingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.approveFailed(w, r, code, err)
		return
	}

	var (
		owner *model.Identity
		err   error
	)
	if identity := middleware.GetIdentity(r.Context()); identity != nil && req.Email == "" {
		owner, err = h.pairingService.ApproveAs(r.Context(), code, *identity)
	} else {
		owner, err = h.pairingService.Approve(r.Context(), code, req.Email, req.Password)
	}
	if err != nil {
		h.approveFailed(w, r, code, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventPairingApprove,
		UserID: owner.ID,
		Code:   code,
	})
	writeJSON(w, http.StatusOK, approveResponse{Success: true})
}

func (h *PairingHandler) approveFailed(w http.ResponseWriter, r *http.Request, code string, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}
	status := httputil.StatusFromCode(appErr.Code)
	reason := approvalReason(appErr.Code)

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventPairingApproveFailure,
		Code:    code,
		Details: map[string]any{"reason": reason},
	})

	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	writeJSON(w, status, approveResponse{Success: false, Reason: reason, Error: message})
}

func approvalReason(code apperrors.ErrorCode) string {
	switch code {
	case apperrors.ErrCodeInvalidCredentials, apperrors.ErrCodeInvalidToken, apperrors.ErrCodeUnauthorized:
		return "invalid_credentials"
	case apperrors.ErrCodePairingExpired:
		return "expired"
	case apperrors.ErrCodeAlreadyResolved:
		return "already_resolved"
	case apperrors.ErrCodeNotFound:
		return "not_found"
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidInput, apperrors.ErrCodeMissingRequired:
		return "invalid_request"
	case apperrors.ErrCodeRateLimitExceeded:
		return "rate_limited"
	default:
		return "internal_error"
	}
}
