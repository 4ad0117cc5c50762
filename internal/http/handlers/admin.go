package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"styletransfer/internal/domain"
)

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type rejectRequestBody struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type userDTO struct {
	Email     string           `json:"email"`
	CreatedAt domain.Timestamp `json:"created_at"`
}

func (a *App) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Accounts.ListUsers(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userDTO{Email: u.Email, CreatedAt: u.CreatedAt})
	}
	a.json(w, http.StatusOK, map[string]any{"users": out})
}

func (a *App) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.Accounts.CreateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, userDTO{Email: user.Email, CreatedAt: user.CreatedAt})
}

func (a *App) DeleteUser(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid email")
		return
	}
	if err := a.Accounts.DeleteUser(r.Context(), email); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "success"})
}

func (a *App) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.Accounts.ListRequests(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (a *App) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := a.Accounts.ApproveRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, req)
}

// RejectRequest takes an optional JSON body with a reason.
func (a *App) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body rejectRequestBody
	if !a.decodeBody(w, r, &body, true) {
		return
	}
	req, err := a.Accounts.RejectRequest(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, req)
}

func (a *App) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := a.Accounts.DeleteRequest(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "success"})
}

func (a *App) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, _ := a.Accounts.ListUsers(ctx)
	reqs, _ := a.Accounts.ListRequests(ctx)
	pending := 0
	for _, req := range reqs {
		if req.Status == domain.RequestStatusPending {
			pending++
		}
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobs":             a.Jobs.Stats(),
		"gallery_items":    a.Gallery.Count(ctx),
		"users":            len(users),
		"pending_requests": pending,
	})
}
