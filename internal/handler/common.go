package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-rating-service/internal/repository"
	"github.com/iliyamo/peer-rating-service/internal/service"
	"github.com/iliyamo/peer-rating-service/internal/token"
)

// errNoIdentity is returned by identity() when the JWT middleware did not
// run or stored nothing usable.
var errNoIdentity = errors.New("no authenticated identity in context")

// identity extracts the authenticated user id and role placed in the
// context by the JWTAuth middleware.
func identity(c echo.Context) (userID, role string, err error) {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return "", "", errNoIdentity
	}
	role, ok = c.Get("role").(string)
	if !ok || role == "" {
		return "", "", errNoIdentity
	}
	return userID, role, nil
}

// writeError maps domain errors onto transport responses. Unrecognized
// errors become 500s; the rating no-op case is additionally logged because
// it indicates data corruption rather than user error.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidVote),
		errors.Is(err, service.ErrSelfVote),
		errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, service.ErrVoteNotFound),
		errors.Is(err, service.ErrWrongCredentials),
		errors.Is(err, service.ErrNothingToChange),
		errors.Is(err, service.ErrAlreadyVerified):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrPayloadIncomplete):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token is not valid"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user is not found"})
	case errors.Is(err, repository.ErrNicknameExists), errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrStaleEdit):
		return c.JSON(http.StatusPreconditionFailed, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrRatingNotUpdated):
		c.Logger().Errorf("rating aggregate was not updated: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rating wasn't updated"})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// userResp is the sanitized account representation returned to clients.
// It never carries the password digest or verification token.
type userResp struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	VerifiedEmail bool      `json:"verifiedEmail"`
	Nickname      string    `json:"nickname"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Role          string    `json:"role"`
	Rating        int       `json:"rating"`
	AvatarURL     *string   `json:"avatarUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toUserResp(u repository.User) userResp {
	resp := userResp{
		ID:            u.ID,
		Email:         u.Email,
		VerifiedEmail: u.VerifiedEmail,
		Nickname:      u.Nickname,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		Rating:        u.Rating,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if u.AvatarURL.Valid {
		url := u.AvatarURL.String
		resp.AvatarURL = &url
	}
	return resp
}
