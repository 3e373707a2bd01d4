package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-rating-service/internal/repository"
	"github.com/iliyamo/peer-rating-service/internal/service"
)

// UserHandler bundles dependencies for profile and rating endpoints.
type UserHandler struct {
	Accounts *service.AccountService
	Ledger   *service.RatingLedger
	Users    *repository.UserRepo
}

func NewUserHandler(accounts *service.AccountService, ledger *service.RatingLedger, users *repository.UserRepo) *UserHandler {
	return &UserHandler{Accounts: accounts, Ledger: ledger, Users: users}
}

// List returns a page of users. Defaults: limit=10, page=1.
func (h *UserHandler) List(c echo.Context) error {
	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	page := 1
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
		}
		page = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]userResp, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResp(u))
	}
	return c.JSON(http.StatusOK, out)
}

// GetByNickname returns a single public profile.
func (h *UserHandler) GetByNickname(c echo.Context) error {
	nickname := strings.TrimSpace(c.Param("nickname"))
	if nickname == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nickname required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByNickname(ctx, nickname)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

type editReq struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
}

// Edit applies profile changes. An If-Unmodified-Since header, when
// present, must match the profile's last update time; edits based on a
// stale snapshot are rejected with 412.
func (h *UserHandler) Edit(c echo.Context) error {
	actorID, actorRole, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID := c.Param("id")

	var req editReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Role != nil {
		role := strings.TrimSpace(*req.Role)
		if role != service.RoleUser && role != service.RoleModerator && role != service.RoleAdmin {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
		}
		req.Role = &role
	}

	var ifUnmodified *time.Time
	if hdr := c.Request().Header.Get("If-Unmodified-Since"); hdr != "" {
		t, err := http.ParseTime(hdr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid If-Unmodified-Since header"})
		}
		ifUnmodified = &t
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Accounts.Edit(ctx, actorID, actorRole, targetID, service.EditParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      req.Role,
	}, ifUnmodified)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// Delete soft-deletes an account.
func (h *UserHandler) Delete(c echo.Context) error {
	actorID, actorRole, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.Delete(ctx, actorID, actorRole, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Vote casts, changes or retracts the caller's vote on the target user.
// The value is read from the "vote" query parameter or a JSON body field.
func (h *UserHandler) Vote(c echo.Context) error {
	voterID, _, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID := c.Param("id")

	raw := c.QueryParam("vote")
	if raw == "" {
		var body struct {
			Vote *int `json:"vote"`
		}
		if err := c.Bind(&body); err != nil || body.Vote == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "vote value required"})
		}
		raw = strconv.Itoa(*body.Vote)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vote must be -1, 0 or 1"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Vote(ctx, voterID, targetID, value); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadAvatar accepts a multipart "avatar" file, pushes it to the object
// store and returns the public URL.
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	actorID, _, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID := c.Param("id")

	fh, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "avatar file required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read avatar file"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read avatar file"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	url, err := h.Accounts.UploadAvatar(ctx, actorID, targetID, data, fh.Filename)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"avatarUrl": url})
}
