package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
	"styletransfer/internal/storage"
)

type recordedNotice struct {
	event   string
	payload map[string]string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (r *recordingNotifier) Notify(_ context.Context, event string, payload map[string]string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, recordedNotice{event: event, payload: payload})
	return true
}

func (r *recordingNotifier) last() recordedNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notices[len(r.notices)-1]
}

var fixedNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *recordingNotifier, *storage.MemoryStore) {
	t.Helper()
	repo := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewService(docstore.New(repo, infra.NopLogger()), Options{
		Notifier:   notifier,
		Logger:     infra.NopLogger(),
		Now:        func() time.Time { return fixedNow },
		BcryptCost: bcrypt.MinCost,
	})
	return svc, notifier, repo
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "  Ada@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateDuplicateUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "ada@example.com", "pw-one")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "ADA@example.com", "pw-two")
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUserRequiresFields(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.CreateUser(context.Background(), "", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteUnknownUserIsNoop(t *testing.T) {
	svc, _, _ := newService(t)
	assert.NoError(t, svc.DeleteUser(context.Background(), "ghost@example.com"))
}

func TestSubmitRequestNotifiesAdmin(t *testing.T) {
	svc, notifier, _ := newService(t)
	ctx := context.Background()

	req, err := svc.SubmitRequest(ctx, "Ada", "ada@example.com", "painting")
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Nil(t, req.ReviewedAt)

	notice := notifier.last()
	assert.Equal(t, domain.EventPermissionRequested, notice.event)
	assert.Equal(t, "ada@example.com", notice.payload["email"])
	assert.Equal(t, "2026-10-19T10:00:00Z", notice.payload["timestamp"])

	all, err := svc.ListRequests(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, req.ID, all[0].ID)
}

func TestApproveCreatesUserWithGeneratedPassword(t *testing.T) {
	svc, notifier, _ := newService(t)
	ctx := context.Background()
	req, err := svc.SubmitRequest(ctx, "Ada", "ada@example.com", "painting")
	require.NoError(t, err)

	reviewed, err := svc.ApproveRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.True(t, reviewed.ReviewedAt.Equal(fixedNow))

	notice := notifier.last()
	assert.Equal(t, domain.EventRequestApproved, notice.event)
	password := notice.payload["password"]
	require.NotEmpty(t, password)

	_, err = svc.Authenticate(ctx, "ada@example.com", password)
	assert.NoError(t, err)

	_, err = svc.ApproveRequest(ctx, req.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyReviewed)
	_, err = svc.RejectRequest(ctx, req.ID, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyReviewed)
}

func TestApproveExistingUserConflicts(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	req, err := svc.SubmitRequest(ctx, "Ada", "ada@example.com", "again")
	require.NoError(t, err)

	_, err = svc.ApproveRequest(ctx, req.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	all, err := svc.ListRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, all[0].Status)
}

func TestRejectWithReason(t *testing.T) {
	svc, notifier, _ := newService(t)
	ctx := context.Background()
	req, err := svc.SubmitRequest(ctx, "Bob", "bob@example.com", "")
	require.NoError(t, err)

	reviewed, err := svc.RejectRequest(ctx, req.ID, " capacity ")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRejected, reviewed.Status)
	require.NotNil(t, reviewed.RejectionReason)
	assert.Equal(t, "capacity", *reviewed.RejectionReason)
	assert.Equal(t, domain.EventRequestRejected, notifier.last().event)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRejectWithoutReasonLeavesNull(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	req, err := svc.SubmitRequest(ctx, "Bob", "bob@example.com", "")
	require.NoError(t, err)

	reviewed, err := svc.RejectRequest(ctx, req.ID, "")
	require.NoError(t, err)
	assert.Nil(t, reviewed.RejectionReason)
}

func TestReviewUnknownRequest(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ApproveRequest(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.RejectRequest(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRequestRegardlessOfStatus(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	req, err := svc.SubmitRequest(ctx, "Bob", "bob@example.com", "")
	require.NoError(t, err)
	_, err = svc.RejectRequest(ctx, req.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRequest(ctx, req.ID))
	all, err := svc.ListRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDocumentsUseEnvelopes(t *testing.T) {
	svc, _, repo := newService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	_, err = svc.SubmitRequest(ctx, "Bob", "bob@example.com", "")
	require.NoError(t, err)

	users, err := repo.Fetch(ctx, UsersPath)
	require.NoError(t, err)
	assert.Contains(t, string(users), `"users": [`)
	requests, err := repo.Fetch(ctx, RequestsPath)
	require.NoError(t, err)
	assert.Contains(t, string(requests), `"requests": [`)
	assert.Contains(t, string(requests), `"reviewed_at": null`)
}
