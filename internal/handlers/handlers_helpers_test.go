package handlers

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet/internal/auth"
	"wallet/internal/config"
	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/ratelimit"
	"wallet/internal/services"
	"wallet/internal/store"
	"wallet/internal/stream"

	"github.com/shopspring/decimal"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn db.TxFunc) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn db.TxFunc) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(ctx, nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Getter, name, email, passwordHash string, pinHash sql.NullString, balance decimal.Decimal) (int64, error)
	getByIDFn    func(ctx context.Context, userID int64) (models.User, error)
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	setPINFn     func(ctx context.Context, userID int64, pinHash string) error
	searchFn     func(ctx context.Context, q string, excludeID int64, limit int) ([]models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Getter, name, email, passwordHash string, pinHash sql.NullString, balance decimal.Decimal) (int64, error) {
	if s.createFn == nil {
		return 1, nil
	}
	return s.createFn(ctx, tx, name, email, passwordHash, pinHash, balance)
}

func (s stubUserStore) GetByID(ctx context.Context, userID int64) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) SetPIN(ctx context.Context, userID int64, pinHash string) error {
	if s.setPINFn == nil {
		return nil
	}
	return s.setPINFn(ctx, userID, pinHash)
}

func (s stubUserStore) Search(ctx context.Context, q string, excludeID int64, limit int) ([]models.User, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, q, excludeID, limit)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, userID int64) ([]models.HistoryEntry, error)
}

func (s stubAuditStore) ListForUser(ctx context.Context, userID int64) ([]models.HistoryEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID)
}

type stubService struct {
	transferFn func(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
}

func (s stubService) Transfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error) {
	return s.transferFn(ctx, req)
}

type stubNotifier struct {
	results []services.TransferResult
}

func (s *stubNotifier) TransferCompleted(_ context.Context, result services.TransferResult) {
	s.results = append(s.results, result)
}

type testDeps struct {
	txRunner  fakeTxRunner
	users     stubUserStore
	audit     stubAuditStore
	transfers stubService
	notifier  *stubNotifier
	streams   *stream.Manager
	limiter   ratelimit.Limiter
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       testSecret,
		TokenTTL:        time.Hour,
		AllowedOrigins:  "*",
		InitialBalance:  "10000.00",
		StreamHeartbeat: 20 * time.Millisecond,
	}
}

func newTestHandler(deps testDeps) *Handler {
	if deps.notifier == nil {
		deps.notifier = &stubNotifier{}
	}
	if deps.streams == nil {
		deps.streams = stream.NewManager(8)
	}
	if deps.transfers.transferFn == nil {
		deps.transfers.transferFn = func(context.Context, services.TransferRequest) (services.TransferResult, error) {
			return services.TransferResult{}, services.ErrOperationFailed
		}
	}
	return New(deps.txRunner, testConfig(), deps.users, deps.audit, deps.transfers, deps.notifier, deps.streams, deps.limiter)
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func serve(t *testing.T, handler *Handler, method, target, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", bearer(t, userID))
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	hash, err := auth.HashPassword(secret)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	return hash
}
