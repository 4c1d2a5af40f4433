package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arkind/identity-api/internal/api/metrics"
	"github.com/arkind/identity-api/internal/api/middleware"
	"github.com/arkind/identity-api/internal/core/domain"
	"github.com/arkind/identity-api/internal/core/ports"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/auth/refresh"
)

// AuditDispatcher is what the handlers need from the audit queue: a
// fire-and-forget enqueue.
type AuditDispatcher interface {
	Enqueue(event domain.AuthEvent)
}

type AuthHandler struct {
	sessions   ports.SessionService
	audit      AuditDispatcher
	refreshTTL time.Duration
}

// NewAuthHandler builds the handler for the /auth routes. refreshTTL bounds
// the refresh cookie's lifetime and must match the token codec's.
func NewAuthHandler(sessions ports.SessionService, audit AuditDispatcher, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{sessions: sessions, audit: audit, refreshTTL: refreshTTL}
}

// Register creates a new account.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  accountResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	account, err := h.sessions.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.record(c, domain.ActionRegister, "", req.Email, false)
		metrics.RegistrationsTotal.With(outcome(err)).Inc()
		return err
	}

	h.record(c, domain.ActionRegister, account.ID, account.Email, true)
	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusCreated, toAccountResponse(account))
}

// Login verifies credentials and opens a session. The access token is
// returned in the body; the refresh token only ever travels in an HttpOnly
// cookie scoped to the refresh route.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      201   {object}  loginResponse
// @Header       201   {string}  Set-Cookie  "refreshToken; HttpOnly; Secure"
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		h.record(c, domain.ActionLogin, "", req.Email, false)
		metrics.LoginsTotal.With(outcome(err)).Inc()
		return err
	}

	h.setRefreshCookie(c, result.RefreshToken)
	h.record(c, domain.ActionLogin, result.Account.ID, result.Account.Email, true)
	metrics.LoginsTotal.WithLabelValues("ok").Inc()

	return c.JSON(http.StatusCreated, loginResponse{
		User:        toUserSummary(result.Account),
		AccessToken: result.AccessToken,
	})
}

// Refresh rotates the refresh token presented in the cookie and returns a
// fresh access token. The spent refresh token is unusable afterwards.
//
// @Summary      Rotate the refresh token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  refreshResponse
// @Header       200  {string}  Set-Cookie  "refreshToken; HttpOnly; Secure"
// @Failure      401  {object}  errorResponse
// @Router       /auth/refresh [get]
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		metrics.TokenRefreshesTotal.WithLabelValues("denied").Inc()
		return domain.ErrTokenInvalid
	}

	pair, err := h.sessions.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		h.record(c, domain.ActionRefresh, "", "", false)
		metrics.TokenRefreshesTotal.With(outcome(err)).Inc()
		return err
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	h.record(c, domain.ActionRefresh, "", "", true)
	metrics.TokenRefreshesTotal.WithLabelValues("ok").Inc()

	return c.JSON(http.StatusOK, refreshResponse{AccessToken: pair.AccessToken})
}

// Logout ends the caller's session and clears the refresh cookie. The caller
// is identified by the bearer access token, not by the cookie.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /auth/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return domain.ErrTokenInvalid
	}

	if err := h.sessions.Logout(c.Request().Context(), identity.AccountID); err != nil {
		h.record(c, domain.ActionLogout, identity.AccountID, "", false)
		metrics.LogoutsTotal.With(outcome(err)).Inc()
		return err
	}

	h.clearRefreshCookie(c)
	h.record(c, domain.ActionLogout, identity.AccountID, "", true)
	metrics.LogoutsTotal.WithLabelValues("ok").Inc()

	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// record enqueues an audit event for this request.
func (h *AuthHandler) record(c echo.Context, action domain.AuthAction, accountID, email string, success bool) {
	if h.audit == nil {
		return
	}
	h.audit.Enqueue(domain.AuthEvent{
		AccountID: accountID,
		Email:     email,
		Action:    action,
		Success:   success,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		At:        time.Now().UTC(),
	})
}

// outcome buckets an error for the result metric label.
func outcome(err error) prometheus.Labels {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrAccountExists),
		errors.Is(err, domain.ErrAccountNotFound):
		return prometheus.Labels{"result": "denied"}
	default:
		return prometheus.Labels{"result": "error"}
	}
}
