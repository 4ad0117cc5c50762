package handlers

import (
	"crypto/subtle"
	"net/http"

	"styletransfer/internal/domain"
	"styletransfer/internal/middleware"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type adminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.issue(w, user.Email, domain.RoleUser)
}

// AdminLogin exchanges the master password for an admin token.
func (a *App) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	if a.MasterPassword == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.MasterPassword)) != 1 {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid admin password")
		return
	}
	a.issue(w, "admin", domain.RoleAdmin)
}

func (a *App) issue(w http.ResponseWriter, subject string, role domain.Role) {
	token, err := middleware.IssueToken(a.JWTSecret, subject, role, a.TokenTTL, a.now())
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	resp := tokenResponse{Token: token, TokenType: "bearer", Role: string(role)}
	if role == domain.RoleUser {
		resp.Email = subject
	}
	a.json(w, http.StatusOK, resp)
}
