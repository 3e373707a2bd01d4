package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/peer-rating-service/internal/hasher"
	"github.com/iliyamo/peer-rating-service/internal/queue"
	"github.com/iliyamo/peer-rating-service/internal/repository"
	"github.com/iliyamo/peer-rating-service/internal/token"
)

// fakeUserStore mirrors UserRepo behaviour in memory.
type fakeUserStore struct {
	users map[string]*repository.User // id -> user (including soft-deleted)
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*repository.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, email, nickname, firstName, lastName, passwordHash string) (repository.User, error) {
	for _, u := range f.users {
		if u.Nickname == nickname {
			return repository.User{}, repository.ErrNicknameExists
		}
		if u.Email == email {
			return repository.User{}, repository.ErrEmailExists
		}
	}
	now := time.Now().UTC().Truncate(time.Second)
	u := &repository.User{
		ID:        uuid.NewString(),
		Email:     email,
		Nickname:  nickname,
		FirstName: firstName,
		LastName:  lastName,
		Password:  passwordHash,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.users[u.ID] = u
	return *u, nil
}

func (f *fakeUserStore) live(id string) *repository.User {
	u, ok := f.users[id]
	if !ok || u.DeletedAt.Valid {
		return nil
	}
	return u
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (repository.User, error) {
	if u := f.live(id); u != nil {
		return *u, nil
	}
	return repository.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) GetByNickname(_ context.Context, nickname string) (repository.User, error) {
	for _, u := range f.users {
		if u.Nickname == nickname && !u.DeletedAt.Valid {
			return *u, nil
		}
	}
	return repository.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) Edit(_ context.Context, id string, p repository.EditUserParams) error {
	u := f.live(id)
	if u == nil {
		return repository.ErrUserNotFound
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	u.UpdatedAt = time.Now().UTC().Truncate(time.Second).Add(time.Second)
	return nil
}

func (f *fakeUserStore) SoftDelete(_ context.Context, id string) error {
	u := f.live(id)
	if u == nil {
		return repository.ErrUserNotFound
	}
	u.DeletedAt.Valid = true
	u.DeletedAt.Time = time.Now().UTC()
	return nil
}

func (f *fakeUserStore) SaveEmailVerificationToken(_ context.Context, id, tok string) error {
	u := f.live(id)
	if u == nil {
		return repository.ErrUserNotFound
	}
	u.EmailVerificationToken.Valid = true
	u.EmailVerificationToken.String = tok
	return nil
}

func (f *fakeUserStore) GetByEmailVerificationToken(_ context.Context, tok string) (repository.User, error) {
	for _, u := range f.users {
		if u.EmailVerificationToken.Valid && u.EmailVerificationToken.String == tok && !u.DeletedAt.Valid {
			return *u, nil
		}
	}
	return repository.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) SetVerifiedEmail(_ context.Context, id string) error {
	u := f.live(id)
	if u == nil {
		return repository.ErrUserNotFound
	}
	u.VerifiedEmail = true
	u.EmailVerificationToken = sql.NullString{}
	return nil
}

func (f *fakeUserStore) SaveAvatarURL(_ context.Context, userID, avatarURL string) error {
	u := f.live(userID)
	if u == nil {
		return repository.ErrUserNotFound
	}
	u.AvatarURL.Valid = true
	u.AvatarURL.String = avatarURL
	return nil
}

// fakeTokenStore backs the token service.
type fakeTokenStore struct {
	users  *fakeUserStore
	tokens map[string]string
}

func (f *fakeTokenStore) SaveToken(_ context.Context, tok, userID string) error {
	if f.users.live(userID) == nil {
		return repository.ErrUserNotFound
	}
	f.tokens[tok] = userID
	return nil
}

func (f *fakeTokenStore) DeleteToken(_ context.Context, tok string) (bool, error) {
	if _, ok := f.tokens[tok]; !ok {
		return false, nil
	}
	delete(f.tokens, tok)
	return true, nil
}

type fakePublisher struct{ events []queue.VerifyEmailEvent }

func (f *fakePublisher) PublishVerifyEmail(_ context.Context, e queue.VerifyEmailEvent) error {
	f.events = append(f.events, e)
	return nil
}

type fakeObjectStore struct{ objects map[string][]byte }

func (f *fakeObjectStore) SendFile(_ context.Context, data []byte, key string) error {
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return nil
}

type accountFixture struct {
	svc       *AccountService
	users     *fakeUserStore
	tokens    *fakeTokenStore
	publisher *fakePublisher
	store     *fakeObjectStore
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	h, err := hasher.New(hasher.Config{
		Algorithm:  "sha256",
		LocalSalt:  "test-salt",
		Iterations: 100,
		KeyLen:     32,
	})
	require.NoError(t, err)

	users := newFakeUserStore()
	tokenStore := &fakeTokenStore{users: users, tokens: map[string]string{}}
	tokens := token.New(tokenStore, "access-secret", "refresh-secret", 15, 30)
	publisher := &fakePublisher{}
	store := &fakeObjectStore{}

	return &accountFixture{
		svc:       NewAccountService(users, h, tokens, publisher, store, "https://cdn.example.com/avatars/"),
		users:     users,
		tokens:    tokenStore,
		publisher: publisher,
		store:     store,
	}
}

func signupAlice(t *testing.T, fx *accountFixture) repository.User {
	t.Helper()
	u, err := fx.svc.Signup(context.Background(), SignupParams{
		Email:     "alice@example.com",
		Nickname:  "alice",
		FirstName: "Alice",
		LastName:  "Smith",
		Password:  "secret123",
	})
	require.NoError(t, err)
	return u
}

func TestSignupStoresDigestNotPassword(t *testing.T) {
	fx := newAccountFixture(t)
	u := signupAlice(t, fx)

	assert.NotEqual(t, "secret123", u.Password)
	assert.NotContains(t, u.Password, "secret123")
	assert.Equal(t, RoleUser, u.Role)
}

func TestSignupDuplicateNickname(t *testing.T) {
	fx := newAccountFixture(t)
	signupAlice(t, fx)

	_, err := fx.svc.Signup(context.Background(), SignupParams{
		Email:    "other@example.com",
		Nickname: "alice",
		Password: "pw",
	})
	assert.ErrorIs(t, err, repository.ErrNicknameExists)
}

func TestLogin(t *testing.T) {
	fx := newAccountFixture(t)
	signupAlice(t, fx)
	ctx := context.Background()

	t.Run("correct password", func(t *testing.T) {
		u, pair, err := fx.svc.Login(ctx, "alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Nickname)
		assert.NotEmpty(t, pair.AccessToken)
		// The refresh token is persisted for later rotation.
		assert.Contains(t, fx.tokens.tokens, pair.RefreshToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := fx.svc.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrWrongCredentials)
	})

	t.Run("unknown nickname", func(t *testing.T) {
		_, _, err := fx.svc.Login(ctx, "nobody", "secret123")
		assert.ErrorIs(t, err, ErrWrongCredentials)
	})
}

func TestRefreshRotation(t *testing.T) {
	fx := newAccountFixture(t)
	signupAlice(t, fx)
	ctx := context.Background()

	_, pair, err := fx.svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)

	next, err := fx.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = fx.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	fx := newAccountFixture(t)
	signupAlice(t, fx)
	ctx := context.Background()

	_, pair, err := fx.svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)

	assert.NoError(t, fx.svc.Logout(ctx, pair.RefreshToken))
	assert.NoError(t, fx.svc.Logout(ctx, pair.RefreshToken))

	// A revoked refresh token cannot be rotated.
	_, err = fx.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to change", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		_, err := fx.svc.Edit(ctx, u.ID, u.Role, u.ID, EditParams{}, nil)
		assert.ErrorIs(t, err, ErrNothingToChange)
	})

	t.Run("user edits own profile", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		name := "Alicia"
		got, err := fx.svc.Edit(ctx, u.ID, u.Role, u.ID, EditParams{FirstName: &name}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", got.FirstName)
	})

	t.Run("user cannot edit another user", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		name := "X"
		_, err := fx.svc.Edit(ctx, u.ID, u.Role, "someone-else", EditParams{FirstName: &name}, nil)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("role change requires admin", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		role := RoleModerator
		_, err := fx.svc.Edit(ctx, u.ID, u.Role, u.ID, EditParams{Role: &role}, nil)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin changes another user's role", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		role := RoleModerator
		got, err := fx.svc.Edit(ctx, "admin-id", RoleAdmin, u.ID, EditParams{Role: &role}, nil)
		require.NoError(t, err)
		assert.Equal(t, RoleModerator, got.Role)
	})

	t.Run("stale optimistic lock", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		stale := u.UpdatedAt.Add(-time.Minute)
		name := "X"
		_, err := fx.svc.Edit(ctx, u.ID, u.Role, u.ID, EditParams{FirstName: &name}, &stale)
		assert.ErrorIs(t, err, ErrStaleEdit)
	})

	t.Run("matching optimistic lock", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		when := u.UpdatedAt
		name := "X"
		_, err := fx.svc.Edit(ctx, u.ID, u.Role, u.ID, EditParams{FirstName: &name}, &when)
		assert.NoError(t, err)
	})

	t.Run("password change re-hashes", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		pw := "newsecret"
		got, err := fx.svc.Edit(ctx, u.ID, u.Role, u.ID, EditParams{Password: &pw}, nil)
		require.NoError(t, err)
		assert.NotEqual(t, "newsecret", got.Password)

		_, _, err = fx.svc.Login(ctx, "alice", "newsecret")
		assert.NoError(t, err)
		_, _, err = fx.svc.Login(ctx, "alice", "secret123")
		assert.ErrorIs(t, err, ErrWrongCredentials)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("user deletes own account", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		require.NoError(t, fx.svc.Delete(ctx, u.ID, u.Role, u.ID))

		// Soft-deleted accounts are invisible to lookups.
		_, _, err := fx.svc.Login(ctx, "alice", "secret123")
		assert.ErrorIs(t, err, ErrWrongCredentials)
		// The row itself survives as a tombstone.
		assert.True(t, fx.users.users[u.ID].DeletedAt.Valid)
	})

	t.Run("user cannot delete another account", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		err := fx.svc.Delete(ctx, u.ID, u.Role, "someone-else")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin deletes another account", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		assert.NoError(t, fx.svc.Delete(ctx, "admin-id", RoleAdmin, u.ID))
	})
}

func TestEmailVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("request publishes event", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		require.NoError(t, fx.svc.RequestEmailVerification(ctx, u.ID))

		require.Len(t, fx.publisher.events, 1)
		event := fx.publisher.events[0]
		assert.Equal(t, u.ID, event.UserID)
		assert.Equal(t, "alice@example.com", event.Email)
		assert.NotEmpty(t, event.Token)

		// The emailed token resolves and flips the verified flag.
		require.NoError(t, fx.svc.VerifyEmail(ctx, event.Token))
		got, err := fx.users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.VerifiedEmail)
		assert.False(t, got.EmailVerificationToken.Valid)
	})

	t.Run("already verified", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		require.NoError(t, fx.svc.RequestEmailVerification(ctx, u.ID))
		require.NoError(t, fx.svc.VerifyEmail(ctx, fx.publisher.events[0].Token))

		err := fx.svc.RequestEmailVerification(ctx, u.ID)
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("unknown token", func(t *testing.T) {
		fx := newAccountFixture(t)
		err := fx.svc.VerifyEmail(ctx, "bogus")
		assert.ErrorIs(t, err, repository.ErrUserNotFound)
	})
}

func TestUploadAvatar(t *testing.T) {
	ctx := context.Background()

	t.Run("owner uploads", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		url, err := fx.svc.UploadAvatar(ctx, u.ID, u.ID, []byte{0xFF, 0xD8}, "me.jpg")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/avatars/"+u.ID+".jpg", url)
		assert.Contains(t, fx.store.objects, u.ID+".jpg")

		got, err := fx.users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.AvatarURL.Valid)
		assert.Equal(t, url, got.AvatarURL.String)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		fx := newAccountFixture(t)
		u := signupAlice(t, fx)
		_, err := fx.svc.UploadAvatar(ctx, "intruder", u.ID, []byte{1}, "x.png")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
