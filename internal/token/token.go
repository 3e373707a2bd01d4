// Package token issues, verifies and rotates the signed access/refresh
// token pair that represents an authenticated session. Access and refresh
// tokens are signed with independent secrets and TTLs so the two are
// independent failure domains.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails verification for any
// reason: bad signature, expiry, malformed input, or a rotation replay.
// Callers must treat it as an authentication failure.
var ErrInvalidToken = errors.New("token is not valid")

// ErrPayloadIncomplete is returned when a decoded refresh token is missing
// required payload fields. Handlers should translate this into HTTP 401.
var ErrPayloadIncomplete = errors.New("token payload is incomplete")

// Payload is the fixed claim contract carried by both tokens.
type Payload struct {
	ID       string
	Email    string
	Nickname string
	Role     string
}

// Pair bundles a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Store persists refresh tokens so they can be revoked and rotated.
// Implemented by repository.TokenRepo.
type Store interface {
	// SaveToken upserts a refresh token row for the given account and
	// fails with repository.ErrUserNotFound when the account is gone.
	SaveToken(ctx context.Context, token, userID string) error
	// DeleteToken removes a token row, reporting whether one existed.
	DeleteToken(ctx context.Context, token string) (bool, error)
}

// Service mints and rotates token pairs.
type Service struct {
	store         Store
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// New builds a Service. TTLs follow the config units: minutes for access
// tokens, days for refresh tokens.
func New(store Store, accessSecret, refreshSecret string, accessTTLMin, refreshTTLDays int) *Service {
	return &Service{
		store:         store,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     time.Duration(accessTTLMin) * time.Minute,
		refreshTTL:    time.Duration(refreshTTLDays) * 24 * time.Hour,
	}
}

// CreateTokens signs a fresh access/refresh pair for the payload.
func (s *Service) CreateTokens(p Payload) (Pair, error) {
	access, err := sign(p, s.accessSecret, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := sign(p, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// SaveToken persists a refresh token for later rotation or revocation.
func (s *Service) SaveToken(ctx context.Context, token, userID string) error {
	return s.store.SaveToken(ctx, token, userID)
}

// DecodeToken verifies a refresh token's signature and expiry and returns
// its payload. Any verification failure maps to ErrInvalidToken.
func (s *Service) DecodeToken(token string) (Payload, error) {
	return decode(token, s.refreshSecret)
}

// DecodeAccess verifies an access token. Used by the auth middleware.
func (s *Service) DecodeAccess(token string) (Payload, error) {
	return decode(token, s.accessSecret)
}

// RefreshToken rotates a refresh token: the old token is verified, removed
// from the store, verified once more against the deleted string, and only
// then is a new pair minted and persisted. A concurrent rotation of the
// same token loses the delete race and fails with ErrInvalidToken.
func (s *Service) RefreshToken(ctx context.Context, oldToken string) (Pair, error) {
	if _, err := s.DecodeToken(oldToken); err != nil {
		return Pair{}, err
	}
	removed, err := s.store.DeleteToken(ctx, oldToken)
	if err != nil {
		return Pair{}, err
	}
	if !removed {
		// Already rotated or revoked; the session is terminated.
		return Pair{}, ErrInvalidToken
	}

	payload, err := s.DecodeToken(oldToken)
	if err != nil {
		return Pair{}, err
	}
	if payload.ID == "" || payload.Email == "" || payload.Nickname == "" || payload.Role == "" {
		return Pair{}, ErrPayloadIncomplete
	}

	pair, err := s.CreateTokens(payload)
	if err != nil {
		return Pair{}, err
	}
	// SaveToken surfaces repository.ErrUserNotFound when the account no
	// longer exists.
	if err := s.store.SaveToken(ctx, pair.RefreshToken, payload.ID); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

// DeleteToken revokes a refresh token. Idempotent: deleting a token that
// is already gone is not an error.
func (s *Service) DeleteToken(ctx context.Context, token string) error {
	_, err := s.store.DeleteToken(ctx, token)
	return err
}

func sign(p Payload, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"id":       p.ID,
		"email":    p.Email,
		"nickname": p.Nickname,
		"role":     p.Role,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func decode(token string, secret []byte) (Payload, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return Payload{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Payload{}, ErrInvalidToken
	}
	return Payload{
		ID:       stringClaim(claims, "id"),
		Email:    stringClaim(claims, "email"),
		Nickname: stringClaim(claims, "nickname"),
		Role:     stringClaim(claims, "role"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
