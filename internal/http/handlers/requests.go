package handlers

import (
	"net/http"
)

type permissionRequestBody struct {
	Name   string `json:"name" validate:"required,max=200"`
	Email  string `json:"email" validate:"required,email"`
	Reason string `json:"reason" validate:"max=2000"`
}

// SubmitPermissionRequest is the public form asking an admin for an account.
func (a *App) SubmitPermissionRequest(w http.ResponseWriter, r *http.Request) {
	var body permissionRequestBody
	if !a.decode(w, r, &body) {
		return
	}
	req, err := a.Accounts.SubmitRequest(r.Context(), body.Name, body.Email, body.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{
		"id":      req.ID,
		"status":  string(req.Status),
		"message": "Permission request submitted successfully",
	})
}
