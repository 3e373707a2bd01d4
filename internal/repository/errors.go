// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrUserNotFound is returned when a referenced account does not exist or
// has been soft-deleted. Handlers should translate this into HTTP 404.
var ErrUserNotFound = errors.New("user not found")

// ErrNicknameExists is returned when an insert violates the unique
// nickname constraint. Handlers should translate this into HTTP 409.
var ErrNicknameExists = errors.New("nickname already exists")

// ErrEmailExists is returned when an insert violates the unique email
// constraint. Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrRatingNotUpdated is returned when the cached rating update inside a
// vote transaction affects zero rows. The target row changed or vanished
// mid-transaction; the transaction is rolled back and handlers should
// translate this into HTTP 500 and log it loudly.
var ErrRatingNotUpdated = errors.New("rating was not updated")
