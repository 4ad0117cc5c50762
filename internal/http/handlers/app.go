package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"styletransfer/internal/accounts"
	"styletransfer/internal/domain"
	"styletransfer/internal/gallery"
	"styletransfer/internal/infra"
	"styletransfer/internal/jobs"
)

const defaultMaxUploadBytes = 50 << 20

type Options struct {
	Jobs           *jobs.Orchestrator
	Gallery        *gallery.Service
	Accounts       *accounts.Service
	Logger         infra.Logger
	JWTSecret      string
	MasterPassword string
	TokenTTL       time.Duration
	MaxUploadBytes int64
}

type App struct {
	Jobs           *jobs.Orchestrator
	Gallery        *gallery.Service
	Accounts       *accounts.Service
	Logger         infra.Logger
	JWTSecret      string
	MasterPassword string
	TokenTTL       time.Duration
	MaxUploadBytes int64

	validate *validator.Validate
	now      func() time.Time
}

func NewApp(opts Options) *App {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &App{
		Jobs:           opts.Jobs,
		Gallery:        opts.Gallery,
		Accounts:       opts.Accounts,
		Logger:         opts.Logger,
		JWTSecret:      opts.JWTSecret,
		MasterPassword: opts.MasterPassword,
		TokenTTL:       ttl,
		MaxUploadBytes: maxUpload,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		now:            time.Now,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]string{"error": errCode, "message": msg})
}

// writeError maps domain errors onto HTTP responses.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrAlreadyReviewed):
		a.error(w, http.StatusConflict, "already_reviewed", err.Error())
	case errors.Is(err, domain.ErrDuplicateKey):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "access denied")
	case errors.Is(err, domain.ErrStoreUnavailable):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
		a.error(w, http.StatusInternalServerError, "store_unavailable", "storage backend unavailable")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return a.decodeBody(w, r, dst, false)
}

// decodeBody is decode with an option to accept an empty body, leaving dst
// untouched.
func (a *App) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if optional {
			return true
		}
		a.error(w, http.StatusBadRequest, "bad_request", "request body required")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid payload"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
