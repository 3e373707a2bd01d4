package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User mirrors the 'users' table plus the avatar URL joined from 'avatars'.
type User struct {
	ID                     string
	Email                  string
	VerifiedEmail          bool
	EmailVerificationToken sql.NullString
	Nickname               string
	FirstName              string
	LastName               string
	Password               string // stored digest, never the raw password
	Role                   string
	Rating                 int
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              sql.NullTime
	AvatarURL              sql.NullString
}

// EditUserParams carries the optional profile fields for Edit. Nil pointers
// leave the column untouched.
type EditUserParams struct {
	FirstName *string
	LastName  *string
	Password  *string // already hashed by the caller
	Role      *string
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `u.id, u.email, u.verified_email, u.email_verification_token,
	u.nickname, u.first_name, u.last_name, u.password, u.role, u.rating,
	u.created_at, u.updated_at, u.deleted_at, a.avatar_url`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.VerifiedEmail, &u.EmailVerificationToken,
		&u.Nickname, &u.FirstName, &u.LastName, &u.Password, &u.Role, &u.Rating,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// Create inserts a user with a fresh uuid and returns the stored row.
// Duplicate nickname/email violations map to the package sentinels.
func (r *UserRepo) Create(ctx context.Context, email, nickname, firstName, lastName, passwordHash string) (User, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, nickname, first_name, last_name, password, role)
		 VALUES (?,?,?,?,?,?, 'user')`,
		id, email, nickname, firstName, lastName, passwordHash)
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(err.Error(), "nickname") {
				return User{}, ErrNicknameExists
			}
			return User{}, ErrEmailExists
		}
		return User{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a non-deleted user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 LEFT JOIN avatars a ON a.user_id = u.id
		 WHERE u.id=? AND u.deleted_at IS NULL LIMIT 1`, id)
	return scanUser(row)
}

// GetByNickname fetches a non-deleted user by nickname.
func (r *UserRepo) GetByNickname(ctx context.Context, nickname string) (User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 LEFT JOIN avatars a ON a.user_id = u.id
		 WHERE u.nickname=? AND u.deleted_at IS NULL LIMIT 1`, nickname)
	return scanUser(row)
}

// List returns a page of non-deleted users ordered by creation time.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 LEFT JOIN avatars a ON a.user_id = u.id
		 WHERE u.deleted_at IS NULL
		 ORDER BY u.created_at, u.id
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.VerifiedEmail, &u.EmailVerificationToken,
			&u.Nickname, &u.FirstName, &u.LastName, &u.Password, &u.Role, &u.Rating,
			&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt, &u.AvatarURL); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Edit updates the supplied profile fields. It returns ErrUserNotFound when
// the row does not exist or is soft-deleted. Callers are expected to have
// verified there is at least one field to change.
func (r *UserRepo) Edit(ctx context.Context, id string, p EditUserParams) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	if p.FirstName != nil {
		sets = append(sets, "first_name=?")
		args = append(args, *p.FirstName)
	}
	if p.LastName != nil {
		sets = append(sets, "last_name=?")
		args = append(args, *p.LastName)
	}
	if p.Password != nil {
		sets = append(sets, "password=?")
		args = append(args, *p.Password)
	}
	if p.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, *p.Role)
	}
	if len(sets) == 0 {
		return nil
	}
	// updated_at moves even when a column is set to its current value, so
	// rows-affected 0 reliably means the row is gone.
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=? AND deleted_at IS NULL", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SoftDelete marks the tombstone timestamp. Votes and tokens referencing
// the account are preserved.
func (r *UserRepo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET deleted_at=NOW() WHERE id=? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SaveEmailVerificationToken stores a pending verification token on the user.
func (r *UserRepo) SaveEmailVerificationToken(ctx context.Context, id, token string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verification_token=? WHERE id=? AND deleted_at IS NULL",
		token, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetByEmailVerificationToken resolves a pending verification token.
func (r *UserRepo) GetByEmailVerificationToken(ctx context.Context, token string) (User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 LEFT JOIN avatars a ON a.user_id = u.id
		 WHERE u.email_verification_token=? AND u.deleted_at IS NULL LIMIT 1`, token)
	return scanUser(row)
}

// SetVerifiedEmail marks the email as verified and clears the token.
func (r *UserRepo) SetVerifiedEmail(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET verified_email=TRUE, email_verification_token=NULL
		 WHERE id=? AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SaveAvatarURL upserts the single avatar row for a user.
func (r *UserRepo) SaveAvatarURL(ctx context.Context, userID, avatarURL string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO avatars (id, user_id, avatar_url) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE avatar_url=VALUES(avatar_url)`,
		uuid.NewString(), userID, avatarURL)
	return err
}

// isDuplicate reports whether err is a MySQL duplicate-key violation (1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
