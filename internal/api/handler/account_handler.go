package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arkind/identity-api/internal/api/middleware"
	"github.com/arkind/identity-api/internal/core/domain"
	"github.com/arkind/identity-api/internal/core/ports"
)

type AccountHandler struct {
	accounts ports.AccountRepository
}

func NewAccountHandler(accounts ports.AccountRepository) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Me returns the authenticated caller's own account.
//
// @Summary      Get the current account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/me [get]
func (h *AccountHandler) Me(c echo.Context) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return domain.ErrTokenInvalid
	}

	account, err := h.accounts.FindByID(c.Request().Context(), identity.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// Get returns an arbitrary account by id. The route is restricted to the
// ADMIN and MODERATOR roles.
//
// @Summary      Get an account by id
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/accounts/{id} [get]
func (h *AccountHandler) Get(c echo.Context) error {
	account, err := h.accounts.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}
