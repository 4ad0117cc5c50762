package domain

// Role enumerates credential roles carried in bearer tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserAccount represents a login-capable account.
type UserAccount struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    Timestamp `json:"created_at"`
}

// RequestStatus enumerates permission request review states.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// PermissionRequest is a public request for an account, reviewed once by an admin.
type PermissionRequest struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Reason          string        `json:"reason"`
	Timestamp       Timestamp     `json:"timestamp"`
	Status          RequestStatus `json:"status"`
	ReviewedAt      *Timestamp    `json:"reviewed_at"`
	RejectionReason *string       `json:"rejection_reason"`
}
