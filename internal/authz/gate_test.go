package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/auth"
	"github.com/kanband/kanband/internal/db"
	"github.com/kanband/kanband/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	byToken map[string]*models.Session
}

func (f *fakeSessions) FindLiveByToken(_ context.Context, token string) (*models.Session, error) {
	s, ok := f.byToken[token]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return nil, db.ErrNotFound
	}
	return s, nil
}

type fakeUsers struct {
	byID map[uuid.UUID]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

const testSecret = "super_secret_for_tests_0123456789ab"

type gateFixture struct {
	gate     *Gate
	codec    *auth.Codec
	sessions *fakeSessions
	users    *fakeUsers
	user     *models.User
}

func newGateFixture(t *testing.T, requireApproval bool) *gateFixture {
	t.Helper()
	codec := auth.NewCodec([]byte(testSecret))
	sessions := &fakeSessions{byToken: make(map[string]*models.Session)}
	users := &fakeUsers{byID: make(map[uuid.UUID]*models.User)}
	user := &models.User{
		ID:       uuid.New(),
		Email:    "a@x.com",
		Role:     models.RoleUser,
		Approval: models.ApprovalApproved,
	}
	users.byID[user.ID] = user
	return &gateFixture{
		gate:     NewGate(codec, sessions, users, requireApproval),
		codec:    codec,
		sessions: sessions,
		users:    users,
		user:     user,
	}
}

func (f *gateFixture) login(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := f.codec.Issue(f.user.ID.String(), f.user.Email, ttl)
	require.NoError(t, err)
	f.sessions.byToken[tok] = &models.Session{
		ID:        uuid.New(),
		UserID:    f.user.ID,
		Token:     tok,
		ExpiresAt: time.Now().Add(ttl),
	}
	return tok
}

func requestWithCookie(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.AddCookie(&http.Cookie{Name: CookieToken, Value: token})
	return r
}

func TestAuthenticate_NoCredential(t *testing.T) {
	f := newGateFixture(t, true)
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)

	_, err := f.gate.Authenticate(r.Context(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	f := newGateFixture(t, true)
	r := requestWithCookie("obviously.invalid.token")

	_, err := f.gate.Authenticate(r.Context(), r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	f := newGateFixture(t, true)
	tok := f.login(t, -time.Minute)
	r := requestWithCookie(tok)

	_, err := f.gate.Authenticate(r.Context(), r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_RevokedSession(t *testing.T) {
	f := newGateFixture(t, true)
	tok := f.login(t, time.Hour)
	delete(f.sessions.byToken, tok) // logout

	r := requestWithCookie(tok)
	_, err := f.gate.Authenticate(r.Context(), r)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestAuthenticate_PendingAccount(t *testing.T) {
	f := newGateFixture(t, true)
	f.user.Approval = models.ApprovalPending
	tok := f.login(t, time.Hour)

	r := requestWithCookie(tok)
	_, err := f.gate.Authenticate(r.Context(), r)
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestAuthenticate_PendingAccount_PolicyOff(t *testing.T) {
	f := newGateFixture(t, false)
	f.user.Approval = models.ApprovalPending
	tok := f.login(t, time.Hour)

	r := requestWithCookie(tok)
	p, err := f.gate.Authenticate(r.Context(), r)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, p.UserID)
}

func TestAuthenticate_Valid(t *testing.T) {
	f := newGateFixture(t, true)
	tok := f.login(t, time.Hour)

	r := requestWithCookie(tok)
	p, err := f.gate.Authenticate(r.Context(), r)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, p.UserID)
	assert.Equal(t, models.RoleUser, p.Role)
	assert.Equal(t, "a@x.com", p.Email)
}

func TestAuthenticate_BearerHeaderFallback(t *testing.T) {
	f := newGateFixture(t, true)
	tok := f.login(t, time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	p, err := f.gate.Authenticate(r.Context(), r)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, p.UserID)
}

// cookie wins over the header when both are present
func TestExtractToken_CookiePrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieToken, Value: "from-cookie"})
	r.Header.Set("Authorization", "Bearer from-header")

	assert.Equal(t, "from-cookie", ExtractToken(r))
}

func TestAuthenticate_SessionUserMismatch(t *testing.T) {
	f := newGateFixture(t, true)
	tok := f.login(t, time.Hour)
	f.sessions.byToken[tok].UserID = uuid.New()

	r := requestWithCookie(tok)
	_, err := f.gate.Authenticate(r.Context(), r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
