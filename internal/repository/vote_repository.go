package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Vote mirrors the 'votes' table. One row per ordered (voter, target) pair.
type Vote struct {
	ID       string
	VoterID  string
	TargetID string
	Value    int
}

// VoteRepo persists votes and keeps the target's cached rating consistent
// with the vote rows. Every mutation runs the vote write and the rating
// update in one transaction.
type VoteRepo struct{ DB *sql.DB }

func NewVoteRepo(db *sql.DB) *VoteRepo { return &VoteRepo{DB: db} }

// Get returns the vote cast by voterID on targetID, or nil when none exists.
func (r *VoteRepo) Get(ctx context.Context, voterID, targetID string) (*Vote, error) {
	var v Vote
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, voter_id, target_id, value FROM votes WHERE voter_id=? AND target_id=? LIMIT 1",
		voterID, targetID).Scan(&v.ID, &v.VoterID, &v.TargetID, &v.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new vote row and refreshes the target's rating.
func (r *VoteRepo) Create(ctx context.Context, voterID, targetID string, value int) error {
	return r.apply(ctx, voterID, targetID, value, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO votes (id, voter_id, target_id, value) VALUES (?,?,?,?)",
			uuid.NewString(), voterID, targetID, value)
		return err
	})
}

// Update changes the value of an existing vote row and refreshes the
// target's rating.
func (r *VoteRepo) Update(ctx context.Context, voteID, voterID, targetID string, value int) error {
	return r.apply(ctx, voterID, targetID, value, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE votes SET value=? WHERE id=?", value, voteID)
		return err
	})
}

// Delete removes a vote row (retraction) and refreshes the target's rating.
func (r *VoteRepo) Delete(ctx context.Context, voteID, voterID, targetID string) error {
	return r.apply(ctx, voterID, targetID, 0, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM votes WHERE id=?", voteID)
		return err
	})
}

// apply runs a vote mutation and the rating recomputation atomically. The
// target row is locked first so concurrent votes on the same target
// serialize instead of summing against a stale snapshot. The new rating is
// the sum of all other voters' values plus the written value, which stays
// correct regardless of the write/read ordering inside the transaction.
func (r *VoteRepo) apply(ctx context.Context, voterID, targetID string, value int, write func(*sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var lockedID string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE id=? AND deleted_at IS NULL FOR UPDATE",
		targetID).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	if err := write(tx); err != nil {
		return err
	}

	var sumOthers int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(value),0) FROM votes WHERE target_id=? AND voter_id<>?",
		targetID, voterID).Scan(&sumOthers); err != nil {
		return err
	}
	rating := sumOthers + value

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET rating=? WHERE id=? AND deleted_at IS NULL", rating, targetID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// The aggregate always moves when a vote changes, so zero affected rows
	// means the target vanished mid-transaction.
	if n == 0 {
		return ErrRatingNotUpdated
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
