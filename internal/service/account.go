package service

import (
	"context"
	"errors"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/peer-rating-service/internal/hasher"
	"github.com/iliyamo/peer-rating-service/internal/queue"
	"github.com/iliyamo/peer-rating-service/internal/repository"
	"github.com/iliyamo/peer-rating-service/internal/token"
)

// Roles accepted for accounts. New signups always start as RoleUser.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// UserStore is the persistence surface the account service needs.
// Implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, email, nickname, firstName, lastName, passwordHash string) (repository.User, error)
	GetByID(ctx context.Context, id string) (repository.User, error)
	GetByNickname(ctx context.Context, nickname string) (repository.User, error)
	Edit(ctx context.Context, id string, p repository.EditUserParams) error
	SoftDelete(ctx context.Context, id string) error
	SaveEmailVerificationToken(ctx context.Context, id, tok string) error
	GetByEmailVerificationToken(ctx context.Context, tok string) (repository.User, error)
	SetVerifiedEmail(ctx context.Context, id string) error
	SaveAvatarURL(ctx context.Context, userID, avatarURL string) error
}

// MailPublisher hands verification-mail events to the queue. Publish
// failures must not fail the triggering request.
type MailPublisher interface {
	PublishVerifyEmail(ctx context.Context, event queue.VerifyEmailEvent) error
}

// ObjectStore uploads avatar bytes under a key. Implemented by storage.Uploader.
type ObjectStore interface {
	SendFile(ctx context.Context, data []byte, key string) error
}

// SignupParams carries the fields required to create an account.
type SignupParams struct {
	Email     string
	Nickname  string
	FirstName string
	LastName  string
	Password  string
}

// EditParams carries the optional profile changes for Edit. Nil pointers
// leave the field untouched.
type EditParams struct {
	FirstName *string
	LastName  *string
	Password  *string // plaintext; hashed inside Edit
	Role      *string
}

// AccountService orchestrates signup, login, session lifecycle and profile
// changes by composing the hasher, token service and persistence store.
type AccountService struct {
	users      UserStore
	hasher     *hasher.Hasher
	tokens     *token.Service
	mail       MailPublisher
	store      ObjectStore
	avatarBase string // public URL prefix, ends with /
}

func NewAccountService(users UserStore, h *hasher.Hasher, tokens *token.Service, mail MailPublisher, store ObjectStore, avatarBase string) *AccountService {
	return &AccountService{
		users:      users,
		hasher:     h,
		tokens:     tokens,
		mail:       mail,
		store:      store,
		avatarBase: avatarBase,
	}
}

// Signup creates an account with a hashed credential. Nickname and email
// uniqueness is enforced by the store; duplicate violations surface as
// repository.ErrNicknameExists / ErrEmailExists.
func (s *AccountService) Signup(ctx context.Context, p SignupParams) (repository.User, error) {
	digest := s.hasher.Hash(p.Password)
	return s.users.Create(ctx, p.Email, p.Nickname, p.FirstName, p.LastName, digest)
}

// Login re-hashes the supplied password and compares it by equality with
// the stored digest. On success a fresh token pair is minted and the
// refresh token persisted for later rotation.
func (s *AccountService) Login(ctx context.Context, nickname, password string) (repository.User, token.Pair, error) {
	u, err := s.users.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return repository.User{}, token.Pair{}, ErrWrongCredentials
		}
		return repository.User{}, token.Pair{}, err
	}
	if s.hasher.Hash(password) != u.Password {
		return repository.User{}, token.Pair{}, ErrWrongCredentials
	}

	pair, err := s.tokens.CreateTokens(token.Payload{
		ID:       u.ID,
		Email:    u.Email,
		Nickname: u.Nickname,
		Role:     u.Role,
	})
	if err != nil {
		return repository.User{}, token.Pair{}, err
	}
	if err := s.tokens.SaveToken(ctx, pair.RefreshToken, u.ID); err != nil {
		return repository.User{}, token.Pair{}, err
	}
	return u, pair, nil
}

// Logout revokes a refresh token. Revoking an unknown token is a no-op.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteToken(ctx, refreshToken)
}

// Refresh rotates a refresh token and returns the new pair.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	return s.tokens.RefreshToken(ctx, refreshToken)
}

// Edit applies profile changes to targetID on behalf of the actor. A user
// may edit only themselves; admins may edit anyone; changing the role
// requires the admin role. When ifUnmodifiedSince is supplied it must match
// the stored update time, otherwise the edit is based on stale state and
// rejected with ErrStaleEdit.
func (s *AccountService) Edit(ctx context.Context, actorID, actorRole, targetID string, p EditParams, ifUnmodifiedSince *time.Time) (repository.User, error) {
	if actorID != targetID && actorRole != RoleAdmin {
		return repository.User{}, ErrForbidden
	}
	if p.FirstName == nil && p.LastName == nil && p.Password == nil && p.Role == nil {
		return repository.User{}, ErrNothingToChange
	}
	if p.Role != nil && actorRole != RoleAdmin {
		return repository.User{}, ErrForbidden
	}

	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return repository.User{}, err
	}
	if ifUnmodifiedSince != nil {
		// HTTP dates carry second precision.
		if !u.UpdatedAt.UTC().Truncate(time.Second).Equal(ifUnmodifiedSince.UTC().Truncate(time.Second)) {
			return repository.User{}, ErrStaleEdit
		}
	}

	edit := repository.EditUserParams{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
	}
	if p.Password != nil {
		digest := s.hasher.Hash(*p.Password)
		edit.Password = &digest
	}
	if err := s.users.Edit(ctx, targetID, edit); err != nil {
		return repository.User{}, err
	}
	return s.users.GetByID(ctx, targetID)
}

// Delete soft-deletes an account, preserving votes and tokens for
// referential history. Users may delete only themselves; admins anyone.
func (s *AccountService) Delete(ctx context.Context, actorID, actorRole, targetID string) error {
	if actorID != targetID && actorRole != RoleAdmin {
		return ErrForbidden
	}
	return s.users.SoftDelete(ctx, targetID)
}

// RequestEmailVerification generates a verification token, stores it on
// the user and publishes a mail event. The mail is sent asynchronously by
// the queue consumer; a publish failure is logged but does not undo the
// stored token, so the client can simply retry.
func (s *AccountService) RequestEmailVerification(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.VerifiedEmail {
		return ErrAlreadyVerified
	}

	verifyToken := uuid.NewString()
	if err := s.users.SaveEmailVerificationToken(ctx, userID, verifyToken); err != nil {
		return err
	}

	event := queue.VerifyEmailEvent{
		UserID:      u.ID,
		Email:       u.Email,
		Nickname:    u.Nickname,
		Token:       verifyToken,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.mail.PublishVerifyEmail(ctx, event); err != nil {
		log.Printf("account: publish verify-email event for %s failed: %v", u.ID, err)
	}
	return nil
}

// VerifyEmail resolves a verification token and marks the email verified.
func (s *AccountService) VerifyEmail(ctx context.Context, verifyToken string) error {
	u, err := s.users.GetByEmailVerificationToken(ctx, verifyToken)
	if err != nil {
		return err
	}
	return s.users.SetVerifiedEmail(ctx, u.ID)
}

// UploadAvatar stores the avatar bytes under "<userID>.<ext>" in the
// object store and records the public URL. Only the owner may upload.
func (s *AccountService) UploadAvatar(ctx context.Context, actorID, targetID string, data []byte, filename string) (string, error) {
	if actorID != targetID {
		return "", ErrForbidden
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return "", err
	}

	ext := strings.TrimPrefix(path.Ext(filename), ".")
	key := targetID
	if ext != "" {
		key = targetID + "." + ext
	}
	if err := s.store.SendFile(ctx, data, key); err != nil {
		return "", err
	}

	avatarURL := s.avatarBase + key
	if err := s.users.SaveAvatarURL(ctx, targetID, avatarURL); err != nil {
		return "", err
	}
	return avatarURL, nil
}
