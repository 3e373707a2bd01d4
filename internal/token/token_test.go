package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/peer-rating-service/internal/repository"
)

// fakeStore keeps refresh tokens in memory, mirroring TokenRepo behaviour.
type fakeStore struct {
	tokens map[string]string // token -> userID
	users  map[string]bool
}

func newFakeStore(userIDs ...string) *fakeStore {
	users := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		users[id] = true
	}
	return &fakeStore{tokens: map[string]string{}, users: users}
}

func (f *fakeStore) SaveToken(_ context.Context, token, userID string) error {
	if !f.users[userID] {
		return repository.ErrUserNotFound
	}
	f.tokens[token] = userID
	return nil
}

func (f *fakeStore) DeleteToken(_ context.Context, token string) (bool, error) {
	if _, ok := f.tokens[token]; !ok {
		return false, nil
	}
	delete(f.tokens, token)
	return true, nil
}

func payload() Payload {
	return Payload{ID: "u-1", Email: "a@example.com", Nickname: "alice", Role: "user"}
}

func newService(store Store) *Service {
	return New(store, "access-secret", "refresh-secret", 15, 30)
}

func TestCreateTokensUsesDistinctSecrets(t *testing.T) {
	svc := newService(newFakeStore("u-1"))
	pair, err := svc.CreateTokens(payload())
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	// Refresh token verifies against the refresh secret.
	got, err := svc.DecodeToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, payload(), got)

	// The access token must not pass refresh verification, and vice versa.
	_, err = svc.DecodeToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.DecodeAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	svc := newService(newFakeStore("u-1"))
	for _, in := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.DecodeToken(in)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestDecodeTokenRejectsExpired(t *testing.T) {
	store := newFakeStore("u-1")
	svc := newService(store)
	expired := New(store, "access-secret", "refresh-secret", -1, 0)

	pair, err := expired.CreateTokens(payload())
	require.NoError(t, err)
	_, err = svc.DecodeToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenRotates(t *testing.T) {
	store := newFakeStore("u-1")
	svc := newService(store)
	ctx := context.Background()

	pair, err := svc.CreateTokens(payload())
	require.NoError(t, err)
	require.NoError(t, svc.SaveToken(ctx, pair.RefreshToken, "u-1"))

	next, err := svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Contains(t, store.tokens, next.RefreshToken)
	assert.NotContains(t, store.tokens, pair.RefreshToken)

	// The predecessor no longer resolves to a live session.
	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenRejectsIncompletePayload(t *testing.T) {
	store := newFakeStore("u-1")
	svc := newService(store)
	ctx := context.Background()

	// Sign a refresh token missing the nickname claim with the same secret.
	claims := jwt.MapClaims{
		"id":    "u-1",
		"email": "a@example.com",
		"role":  "user",
		"exp":   time.Now().UTC().Add(time.Hour).Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("refresh-secret"))
	require.NoError(t, err)
	store.tokens[raw] = "u-1"

	_, err = svc.RefreshToken(ctx, raw)
	assert.ErrorIs(t, err, ErrPayloadIncomplete)
}

func TestRefreshTokenFailsWhenUserDeleted(t *testing.T) {
	store := newFakeStore("u-1")
	svc := newService(store)
	ctx := context.Background()

	pair, err := svc.CreateTokens(payload())
	require.NoError(t, err)
	require.NoError(t, svc.SaveToken(ctx, pair.RefreshToken, "u-1"))

	delete(store.users, "u-1")
	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestDeleteTokenIdempotent(t *testing.T) {
	store := newFakeStore("u-1")
	svc := newService(store)
	ctx := context.Background()

	pair, err := svc.CreateTokens(payload())
	require.NoError(t, err)
	require.NoError(t, svc.SaveToken(ctx, pair.RefreshToken, "u-1"))

	assert.NoError(t, svc.DeleteToken(ctx, pair.RefreshToken))
	assert.NoError(t, svc.DeleteToken(ctx, pair.RefreshToken))
}

func TestSaveTokenUnknownUser(t *testing.T) {
	svc := newService(newFakeStore())
	err := svc.SaveToken(context.Background(), "whatever", "ghost")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
