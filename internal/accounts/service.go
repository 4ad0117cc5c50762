// Package accounts manages login accounts and the permission requests that
// lead to them.
package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
	"styletransfer/internal/records"
)

const (
	UsersPath    = "auth/users.json"
	RequestsPath = "auth/requests.json"
)

type Options struct {
	Notifier domain.Notifier
	Logger   infra.Logger
	Now      func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Service struct {
	users    *records.Collection[string, domain.UserAccount]
	requests *records.Collection[string, domain.PermissionRequest]
	notifier domain.Notifier
	logger   infra.Logger
	now      func() time.Time
	cost     int
}

func NewService(docs *docstore.Store, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users: records.New(docs, records.Config[string, domain.UserAccount]{
			Path:     UsersPath,
			Envelope: "users",
			Key:      func(u domain.UserAccount) string { return u.Email },
			Message:  "Update users.json",
		}, opts.Logger),
		requests: records.New(docs, records.Config[string, domain.PermissionRequest]{
			Path:     RequestsPath,
			Envelope: "requests",
			Key:      func(r domain.PermissionRequest) string { return r.ID },
			Message:  "Update requests.json",
		}, opts.Logger),
		notifier: opts.Notifier,
		logger:   opts.Logger.With().Str("component", "accounts").Logger(),
		now:      now,
		cost:     cost,
	}
}

// NormalizeEmail is the canonical form used as the account key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return s.users.List(ctx)
}

// CreateUser hashes password and stores a new account. An existing email
// yields domain.ErrDuplicateKey.
func (s *Service) CreateUser(ctx context.Context, email, password string) (domain.UserAccount, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.UserAccount{}, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.UserAccount{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    domain.NewTimestamp(s.now()),
	}
	if err := s.users.Add(ctx, user); err != nil {
		return domain.UserAccount{}, err
	}
	s.logger.Info().Str("email", email).Msg("user created")
	return user, nil
}

// DeleteUser removes an account. Unknown emails are ignored.
func (s *Service) DeleteUser(ctx context.Context, email string) error {
	return s.users.Delete(ctx, NormalizeEmail(email))
}

// Authenticate checks credentials and returns the matching account, or
// domain.ErrUnauthorized without revealing which part was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.UserAccount, error) {
	user, err := s.users.Get(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UserAccount{}, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
		}
		return domain.UserAccount{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	return user, nil
}

// SubmitRequest records a pending permission request and notifies the admin.
func (s *Service) SubmitRequest(ctx context.Context, name, email, reason string) (domain.PermissionRequest, error) {
	req := domain.PermissionRequest{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		Reason:    strings.TrimSpace(reason),
		Timestamp: domain.NewTimestamp(s.now()),
		Status:    domain.RequestStatusPending,
	}
	if req.Name == "" || req.Email == "" {
		return domain.PermissionRequest{}, fmt.Errorf("%w: name and email are required", domain.ErrInvalidInput)
	}
	if err := s.requests.Add(ctx, req); err != nil {
		return domain.PermissionRequest{}, err
	}
	s.logger.Info().Str("request_id", req.ID).Str("email", req.Email).Msg("permission request submitted")

	s.notifier.Notify(ctx, domain.EventPermissionRequested, map[string]string{
		"name":      req.Name,
		"email":     req.Email,
		"reason":    req.Reason,
		"timestamp": req.Timestamp.Format(time.RFC3339),
	})
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context) ([]domain.PermissionRequest, error) {
	return s.requests.List(ctx)
}

// ApproveRequest creates an account with a generated password for a pending
// request, marks it approved and mails the credentials to the requester.
func (s *Service) ApproveRequest(ctx context.Context, id string) (domain.PermissionRequest, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return req, err
	}
	if req.Status != domain.RequestStatusPending {
		return req, fmt.Errorf("%w: request is %s", domain.ErrAlreadyReviewed, req.Status)
	}

	password := rand.Text()
	if _, err := s.CreateUser(ctx, req.Email, password); err != nil {
		return req, err
	}

	reviewed, err := s.review(ctx, id, func(r *domain.PermissionRequest) {
		r.Status = domain.RequestStatusApproved
	})
	if err != nil {
		if derr := s.DeleteUser(ctx, req.Email); derr != nil {
			s.logger.Error().Err(derr).Str("email", req.Email).Msg("rollback of approved user failed")
		}
		return req, err
	}

	s.notifier.Notify(ctx, domain.EventRequestApproved, map[string]string{
		"name":     reviewed.Name,
		"email":    reviewed.Email,
		"password": password,
	})
	return reviewed, nil
}

// RejectRequest marks a pending request rejected with an optional reason.
func (s *Service) RejectRequest(ctx context.Context, id, reason string) (domain.PermissionRequest, error) {
	reason = strings.TrimSpace(reason)
	reviewed, err := s.review(ctx, id, func(r *domain.PermissionRequest) {
		r.Status = domain.RequestStatusRejected
		if reason != "" {
			r.RejectionReason = &reason
		}
	})
	if err != nil {
		return reviewed, err
	}

	s.notifier.Notify(ctx, domain.EventRequestRejected, map[string]string{
		"name":   reviewed.Name,
		"email":  reviewed.Email,
		"reason": reason,
	})
	return reviewed, nil
}

// DeleteRequest removes a request whatever its status.
func (s *Service) DeleteRequest(ctx context.Context, id string) error {
	return s.requests.Delete(ctx, id)
}

// review applies a one-time transition out of pending.
func (s *Service) review(ctx context.Context, id string, apply func(*domain.PermissionRequest)) (domain.PermissionRequest, error) {
	var out domain.PermissionRequest
	found, err := s.requests.Update(ctx, id, func(r *domain.PermissionRequest) error {
		if r.Status != domain.RequestStatusPending {
			return fmt.Errorf("%w: request is %s", domain.ErrAlreadyReviewed, r.Status)
		}
		apply(r)
		at := domain.NewTimestamp(s.now())
		r.ReviewedAt = &at
		out = *r
		return nil
	})
	if err != nil {
		return out, err
	}
	if !found {
		return out, fmt.Errorf("%w: request %s", domain.ErrNotFound, id)
	}
	s.logger.Info().Str("request_id", id).Str("status", string(out.Status)).Msg("permission request reviewed")
	return out, nil
}
