package service

import "errors"

// Rating ledger errors. All map to HTTP 4xx in the handlers and leave no
// state behind.
var (
	// ErrInvalidVote is returned when the vote value is outside {-1,0,1}.
	ErrInvalidVote = errors.New("vote value must be -1, 0 or 1")
	// ErrSelfVote is returned when an account votes for itself.
	ErrSelfVote = errors.New("you cannot vote for yourself")
	// ErrAlreadyVoted is returned when the voter repeats their current value.
	ErrAlreadyVoted = errors.New("you have already voted for this user")
	// ErrVoteNotFound is returned when retracting a vote that does not exist.
	ErrVoteNotFound = errors.New("the vote does not exist")
)

// Account service errors.
var (
	// ErrWrongCredentials covers both unknown nickname and bad password so
	// the response does not reveal which one failed.
	ErrWrongCredentials = errors.New("login or password is not correct")
	// ErrNothingToChange is returned when an edit carries no fields.
	ErrNothingToChange = errors.New("nothing to change")
	// ErrForbidden is returned when the acting principal lacks the role or
	// ownership required for the operation.
	ErrForbidden = errors.New("you don't have the required permissions")
	// ErrStaleEdit is returned when the client's last-known update time no
	// longer matches the stored row (optimistic lock failure).
	ErrStaleEdit = errors.New("the profile was modified by someone else")
	// ErrAlreadyVerified is returned when requesting verification mail for
	// an already verified address.
	ErrAlreadyVerified = errors.New("the email is already verified")
)
