package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/arkind/identity-api/internal/core/domain"
	"github.com/arkind/identity-api/internal/core/ports"
	"github.com/arkind/identity-api/internal/security"
	"github.com/arkind/identity-api/internal/token"
)

var _ ports.SessionService = (*SessionService)(nil)

type stubAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return nil, domain.ErrAccountExists
		}
	}
	r.accounts[account.ID] = cloneAccount(account)
	return cloneAccount(account), nil
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) SetRefreshToken(_ context.Context, id, tok string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.RefreshToken = tok
	return nil
}

func (r *stubAccountRepo) SwapRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || a.RefreshToken != expected {
		return false, nil
	}
	a.RefreshToken = next
	return true, nil
}

func (r *stubAccountRepo) ClearRefreshToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.RefreshToken = ""
	return nil
}

func (r *stubAccountRepo) storedToken(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ""
	}
	return a.RefreshToken
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func newTestService() (*SessionService, *stubAccountRepo, *token.Codec) {
	repo := newStubAccountRepo()
	codec := token.NewCodec("test-secret", time.Minute, time.Hour)
	svc := NewSessionService(repo, codec, zerolog.Nop())
	return svc, repo, codec
}

func registerTestAccount(t *testing.T, svc *SessionService) *domain.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), ports.RegisterInput{
		Email:    "ada@example.com",
		Password: "hunter2hunter2",
		Name:     "Ada",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return account
}

func TestRegister(t *testing.T) {
	svc, repo, _ := newTestService()
	account := registerTestAccount(t, svc)

	if account.ID == "" {
		t.Error("expected a generated account id")
	}
	if account.Role != domain.RoleUser {
		t.Errorf("role = %q, want %q", account.Role, domain.RoleUser)
	}
	if account.PasswordHash == "hunter2hunter2" {
		t.Error("password stored in plaintext")
	}
	if !security.VerifyPassword("hunter2hunter2", account.PasswordHash) {
		t.Error("stored hash does not match the password")
	}
	if got := repo.storedToken(account.ID); got != "" {
		t.Errorf("fresh account has refresh token %q, want empty", got)
	}
}

func TestRegister_NormalizesEmail(t *testing.T) {
	svc, _, _ := newTestService()

	account, err := svc.Register(context.Background(), ports.RegisterInput{
		Email:    "  Ada@Example.COM ",
		Password: "hunter2hunter2",
		Name:     "Ada",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.Email != "ada@example.com" {
		t.Errorf("email = %q, want %q", account.Email, "ada@example.com")
	}

	if _, err := svc.Login(context.Background(), "ADA@example.com", "hunter2hunter2"); err != nil {
		t.Errorf("Login with differently cased email: %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	registerTestAccount(t, svc)

	_, err := svc.Register(context.Background(), ports.RegisterInput{
		Email:    "ada@example.com",
		Password: "another-password",
		Name:     "Imposter",
	})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Errorf("Register(duplicate) = %v, want ErrAccountExists", err)
	}
}

func TestLogin(t *testing.T) {
	svc, repo, codec := newTestService()
	account := registerTestAccount(t, svc)

	result, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := codec.Verify(result.AccessToken)
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if claims.Subject != account.ID {
		t.Errorf("access token subject = %q, want %q", claims.Subject, account.ID)
	}
	if !codec.IsStillValid(result.RefreshToken) {
		t.Error("refresh token does not verify")
	}
	if got := repo.storedToken(account.ID); got != result.RefreshToken {
		t.Errorf("stored refresh token = %q, want the issued one", got)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	registerTestAccount(t, svc)

	_, err := svc.Login(context.Background(), "ada@example.com", "wrong-password")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Login(context.Background(), "ghost@example.com", "whatever12345")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Login(unknown email) = %v, want ErrInvalidCredentials", err)
	}
	if errors.Is(err, domain.ErrAccountNotFound) {
		t.Error("unknown email must not be distinguishable from a wrong password")
	}
}

func TestLogin_ReusesValidRefreshToken(t *testing.T) {
	svc, _, _ := newTestService()
	registerTestAccount(t, svc)

	first, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.RefreshToken != second.RefreshToken {
		t.Error("second login minted a new refresh token while the first was still valid")
	}
}

func TestLogin_ReplacesDeadRefreshToken(t *testing.T) {
	svc, repo, _ := newTestService()
	account := registerTestAccount(t, svc)

	// Simulate a stored token that no longer verifies.
	if err := repo.SetRefreshToken(context.Background(), account.ID, "stale-garbage"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	result, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.RefreshToken == "stale-garbage" {
		t.Error("login reused a refresh token that does not verify")
	}
	if got := repo.storedToken(account.ID); got != result.RefreshToken {
		t.Errorf("stored refresh token = %q, want the freshly minted one", got)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, repo, _ := newTestService()
	account := registerTestAccount(t, svc)

	login, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	pair, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken == login.RefreshToken {
		t.Error("rotation returned the presented token unchanged")
	}
	if got := repo.storedToken(account.ID); got != pair.RefreshToken {
		t.Errorf("stored refresh token = %q, want the rotated one", got)
	}

	// The spent token is gone for good.
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("Refresh(spent token) = %v, want ErrTokenInvalid", err)
	}

	// The rotated token works exactly once more.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Errorf("Refresh(rotated token) = %v, want success", err)
	}
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Refresh(context.Background(), "not-a-token"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("Refresh(garbage) = %v, want ErrTokenInvalid", err)
	}
}

func TestRefresh_UnknownAccount(t *testing.T) {
	svc, _, codec := newTestService()

	orphan, err := codec.IssueRefresh(&domain.Account{ID: "deleted-account", Name: "Ghost", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), orphan); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("Refresh(orphan token) = %v, want ErrTokenInvalid", err)
	}
}

func TestRefresh_AfterLogout(t *testing.T) {
	svc, _, _ := newTestService()
	account := registerTestAccount(t, svc)

	login, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), account.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("Refresh(after logout) = %v, want ErrTokenInvalid", err)
	}
}

func TestLogout(t *testing.T) {
	svc, repo, _ := newTestService()
	account := registerTestAccount(t, svc)

	if _, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), account.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := repo.storedToken(account.ID); got != "" {
		t.Errorf("refresh token after logout = %q, want empty", got)
	}
}

func TestLogout_UnknownAccount(t *testing.T) {
	svc, _, _ := newTestService()

	if err := svc.Logout(context.Background(), "no-such-account"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Logout(unknown) = %v, want ErrAccountNotFound", err)
	}
}

func TestRefresh_ConcurrentRotationSingleWinner(t *testing.T) {
	svc, _, _ := newTestService()
	registerTestAccount(t, svc)

	login, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		failures int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background(), login.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrTokenInvalid):
				failures++
			default:
				t.Errorf("unexpected refresh error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("concurrent rotations succeeded %d times, want exactly 1", wins)
	}
	if failures != workers-1 {
		t.Errorf("losing rotations = %d, want %d", failures, workers-1)
	}
}
