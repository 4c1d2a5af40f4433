package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/arkind/identity-api/internal/api/middleware"
	"github.com/arkind/identity-api/internal/core/domain"
)

type stubAccountRepo struct {
	findByIDFn func(ctx context.Context, id string) (*domain.Account, error)
}

func (s *stubAccountRepo) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.findByIDFn(ctx, id)
}

func (s *stubAccountRepo) FindByEmail(context.Context, string) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func (s *stubAccountRepo) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	return a, nil
}

func (s *stubAccountRepo) SetRefreshToken(context.Context, string, string) error { return nil }

func (s *stubAccountRepo) SwapRefreshToken(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func (s *stubAccountRepo) ClearRefreshToken(context.Context, string) error { return nil }

func TestAccountHandler_Me(t *testing.T) {
	e := echo.New()
	repo := &stubAccountRepo{
		findByIDFn: func(_ context.Context, id string) (*domain.Account, error) {
			if id != "acc-1" {
				t.Fatalf("id = %q, want acc-1", id)
			}
			return testAccount(), nil
		},
	}
	handler := NewAccountHandler(repo)

	c, rec := newAuthContext(e, http.MethodGet, "/v1/me", "")
	c.Set(middleware.IdentityKey, middleware.Identity{AccountID: "acc-1", Name: "alice", Role: domain.RoleUser})

	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["id"] != "acc-1" || resp["email"] != "alice@example.com" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAccountHandler_Me_MissingIdentity(t *testing.T) {
	e := echo.New()
	handler := NewAccountHandler(&stubAccountRepo{
		findByIDFn: func(context.Context, string) (*domain.Account, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	})

	c, _ := newAuthContext(e, http.MethodGet, "/v1/me", "")

	if err := handler.Me(c); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAccountHandler_Get(t *testing.T) {
	e := echo.New()
	repo := &stubAccountRepo{
		findByIDFn: func(_ context.Context, id string) (*domain.Account, error) {
			if id != "acc-2" {
				t.Fatalf("id = %q, want acc-2", id)
			}
			account := testAccount()
			account.ID = "acc-2"
			return account, nil
		},
	}
	handler := NewAccountHandler(repo)

	c, rec := newAuthContext(e, http.MethodGet, "/v1/accounts/acc-2", "")
	c.SetParamNames("id")
	c.SetParamValues("acc-2")

	if err := handler.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAccountHandler_Get_NotFound(t *testing.T) {
	e := echo.New()
	handler := NewAccountHandler(&stubAccountRepo{
		findByIDFn: func(context.Context, string) (*domain.Account, error) {
			return nil, domain.ErrAccountNotFound
		},
	})

	c, _ := newAuthContext(e, http.MethodGet, "/v1/accounts/ghost", "")
	c.SetParamNames("id")
	c.SetParamValues("ghost")

	if err := handler.Get(c); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
