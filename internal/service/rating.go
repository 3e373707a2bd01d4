package service

import (
	"context"

	"github.com/iliyamo/peer-rating-service/internal/repository"
)

// VoteStore is the persistence surface the ledger needs. Implemented by
// repository.VoteRepo; every mutation must couple the vote write with the
// target's rating update in one transaction.
type VoteStore interface {
	Get(ctx context.Context, voterID, targetID string) (*repository.Vote, error)
	Create(ctx context.Context, voterID, targetID string, value int) error
	Update(ctx context.Context, voteID, voterID, targetID string, value int) error
	Delete(ctx context.Context, voteID, voterID, targetID string) error
}

// RatingLedger applies the vote state-transition rules: at most one vote
// per (voter, target) pair, no self-votes, identical revotes rejected, and
// a zero vote retracts by deleting the row.
type RatingLedger struct {
	votes VoteStore
}

func NewRatingLedger(votes VoteStore) *RatingLedger {
	return &RatingLedger{votes: votes}
}

// Vote casts, changes or retracts voterID's opinion of targetID.
func (l *RatingLedger) Vote(ctx context.Context, voterID, targetID string, value int) error {
	if value < -1 || value > 1 {
		return ErrInvalidVote
	}
	if voterID == targetID {
		return ErrSelfVote
	}

	existing, err := l.votes.Get(ctx, voterID, targetID)
	if err != nil {
		return err
	}

	if existing == nil {
		if value == 0 {
			return ErrVoteNotFound
		}
		return l.votes.Create(ctx, voterID, targetID, value)
	}

	if existing.Value == value {
		return ErrAlreadyVoted
	}
	if value == 0 {
		return l.votes.Delete(ctx, existing.ID, voterID, targetID)
	}
	return l.votes.Update(ctx, existing.ID, voterID, targetID, value)
}
