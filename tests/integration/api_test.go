package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "wallet-ledger/internal/adapter/http/handler"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack on in-memory storage: the journaled
// memStore stands in for PostgreSQL and miniredis for Redis. This exercises
// the real HTTP layer, middleware, handlers, services, and cache end-to-end.

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	txRepo *inMemoryTransactionRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	balanceCache := redisStorage.NewBalanceCache(rdb)

	store := newMemStore()
	userRepo := newInMemoryUserRepo(store)
	walletRepo := newInMemoryWalletRepo(store)
	balanceRepo := newInMemoryBalanceRepo(store)
	txRepo := newInMemoryTransactionRepo(store)
	transactor := newInMemoryTransactor(store)

	log := logger.New("debug", false)
	userSvc := service.NewUserService(userRepo, walletRepo, transactor, log)
	walletSvc := service.NewWalletService(walletRepo, balanceRepo, txRepo, transactor, balanceCache, log)
	reportingSvc := service.NewReportingService(walletRepo, balanceRepo, txRepo, balanceCache, 30*time.Second, log)
	reconSvc := service.NewReconciliationService(walletRepo, balanceRepo, txRepo, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		UserSvc:        userSvc,
		WalletSvc:      walletSvc,
		ReportingSvc:   reportingSvc,
		ReconSvc:       reconSvc,
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server: server,
		redis:  mr,
		txRepo: txRepo,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// doJSON issues a request and decodes the response envelope into a map.
func (a *testApp) doJSON(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

// createUser registers a user and returns its id.
func (a *testApp) createUser(t *testing.T, name, email string) string {
	t.Helper()

	status, envelope := a.doJSON(t, http.MethodPost, "/api/v1/users",
		fmt.Sprintf(`{"name":%q,"email":%q}`, name, email))
	require.Equal(t, http.StatusCreated, status)

	d := envelope["data"].(map[string]any)
	return d["user_id"].(string)
}

func walletPath(userID, op string) string {
	return "/api/v1/users/" + userID + "/wallet/" + op
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", envelope)
	return d
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_CreateUser(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	status, envelope := app.doJSON(t, http.MethodPost, "/api/v1/users",
		`{"name":"Alice","email":"alice@example.com"}`)
	require.Equal(t, http.StatusCreated, status)

	d := data(t, envelope)
	assert.NotEmpty(t, d["user_id"])
	assert.NotEmpty(t, d["wallet_id"])
	assert.NotEmpty(t, envelope["request_id"])

	// A second registration with the same email is rejected.
	status, envelope = app.doJSON(t, http.MethodPost, "/api/v1/users",
		`{"name":"Alice Again","email":"Alice@Example.com"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "USR_001", envelope["error_code"])
}

func TestIntegration_CreateUser_InvalidBody(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	status, envelope := app.doJSON(t, http.MethodPost, "/api/v1/users",
		`{"name":"No Email"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "WLT_000", envelope["error_code"])

	status, envelope = app.doJSON(t, http.MethodPost, "/api/v1/users",
		`{"name":"Bad Email","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "WLT_000", envelope["error_code"])
}

// TestIntegration_WalletLifecycle drives a wallet through funds, a
// withdrawal, and conversions in both directions, then checks the read views
// and reconciliation over the result.
func TestIntegration_WalletLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Bob", "bob@example.com")

	// Fund 100 USD and 200 MXN.
	status, envelope := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":100,"currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)
	d := data(t, envelope)
	assert.Equal(t, "FUND", d["kind"])
	assert.Equal(t, "USD", d["currency"])
	assert.InDelta(t, 100, d["amount"], 1e-9)

	status, _ = app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":200,"currency":"MXN"}`)
	require.Equal(t, http.StatusCreated, status)

	// Withdraw 50 MXN.
	status, envelope = app.doJSON(t, http.MethodPost, walletPath(userID, "withdraw"),
		`{"amount":50,"currency":"MXN"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "WITHDRAW", data(t, envelope)["kind"])

	// Convert 20 USD -> MXN at the default rate 18.70: credits 374 MXN.
	status, envelope = app.doJSON(t, http.MethodPost, walletPath(userID, "convert"),
		`{"amount":20,"from_currency":"USD","to_currency":"MXN"}`)
	require.Equal(t, http.StatusCreated, status)
	d = data(t, envelope)
	assert.Equal(t, "CONVERT", d["kind"])
	assert.Equal(t, "USD", d["currency"])
	assert.Equal(t, "MXN", d["to_currency"])
	assert.InDelta(t, 18.70, d["exchange_rate"], 1e-9)

	// Convert 100 MXN -> USD at the default rate 0.053: credits 5.3 USD.
	status, _ = app.doJSON(t, http.MethodPost, walletPath(userID, "convert"),
		`{"amount":100,"from_currency":"MXN","to_currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)

	// Balances: USD 100 - 20 + 5.3 = 85.3, MXN 200 - 50 + 374 - 100 = 424.
	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	balances := data(t, envelope)["balances"].(map[string]any)
	assert.InDelta(t, 85.3, balances["USD"], 1e-9)
	assert.InDelta(t, 424, balances["MXN"], 1e-9)

	// History includes the conversion legs among funds and withdrawals.
	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "transactions"), "")
	require.Equal(t, http.StatusOK, status)
	history := data(t, envelope)

	funds := history["fund_transactions"].([]any)
	require.Len(t, funds, 4)
	fundAmounts := make([]float64, len(funds))
	for i, f := range funds {
		fundAmounts[i] = f.(map[string]any)["amount"].(float64)
	}
	assert.InDelta(t, 100, fundAmounts[0], 1e-9)
	assert.InDelta(t, 200, fundAmounts[1], 1e-9)
	assert.InDelta(t, 374, fundAmounts[2], 1e-9)
	assert.InDelta(t, 5.3, fundAmounts[3], 1e-9)

	assert.Len(t, history["withdraw_transactions"].([]any), 3)

	conversions := history["convert_transactions"].([]any)
	require.Len(t, conversions, 2)
	first := conversions[0].(map[string]any)
	assert.Equal(t, "USD", first["currency"])
	assert.Equal(t, "MXN", first["to_currency"])
	assert.InDelta(t, 18.70, first["exchange_rate"], 1e-9)

	// Reconciliation agrees with the stored balances.
	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "reconciliation"), "")
	require.Equal(t, http.StatusOK, status)
	report := data(t, envelope)["report"].(map[string]any)
	assert.Equal(t, "OK", report["USD"])
	assert.Equal(t, "OK", report["MXN"])
}

func TestIntegration_Convert_CustomRate(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Carol", "carol@example.com")

	status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":10,"currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)

	status, envelope := app.doJSON(t, http.MethodPost, walletPath(userID, "convert"),
		`{"amount":10,"from_currency":"USD","to_currency":"MXN","rate":20}`)
	require.Equal(t, http.StatusCreated, status)
	assert.InDelta(t, 20, data(t, envelope)["exchange_rate"], 1e-9)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	balances := data(t, envelope)["balances"].(map[string]any)
	assert.InDelta(t, 0, balances["USD"], 1e-9)
	assert.InDelta(t, 200, balances["MXN"], 1e-9)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "reconciliation"), "")
	require.Equal(t, http.StatusOK, status)
	report := data(t, envelope)["report"].(map[string]any)
	assert.Equal(t, "OK", report["USD"])
	assert.Equal(t, "OK", report["MXN"])
}

func TestIntegration_ErrorResponses(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Dave", "dave@example.com")

	cases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown user",
			method:     http.MethodPost,
			path:       walletPath("0a37eb5e-977e-4d2f-8b30-1b3a4a3c2ad1", "fund"),
			body:       `{"amount":10,"currency":"USD"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "WLT_001",
		},
		{
			name:       "malformed user id",
			method:     http.MethodPost,
			path:       walletPath("not-a-uuid", "fund"),
			body:       `{"amount":10,"currency":"USD"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "WLT_000",
		},
		{
			name:       "zero amount fund",
			method:     http.MethodPost,
			path:       walletPath(userID, "fund"),
			body:       `{"amount":0,"currency":"USD"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "WLT_002",
		},
		{
			name:       "negative amount fund",
			method:     http.MethodPost,
			path:       walletPath(userID, "fund"),
			body:       `{"amount":-5,"currency":"USD"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "WLT_002",
		},
		{
			name:       "unsupported fund currency",
			method:     http.MethodPost,
			path:       walletPath(userID, "fund"),
			body:       `{"amount":10,"currency":"EUR"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "WLT_003",
		},
		{
			name:       "withdraw without balance row",
			method:     http.MethodPost,
			path:       walletPath(userID, "withdraw"),
			body:       `{"amount":10,"currency":"MXN"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "WLT_005",
		},
		{
			name:       "unsupported conversion currency",
			method:     http.MethodPost,
			path:       walletPath(userID, "convert"),
			body:       `{"amount":10,"from_currency":"EUR","to_currency":"USD"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "WLT_004",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, envelope := app.doJSON(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, envelope["error_code"])
		})
	}
}

func TestIntegration_Withdraw_InsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Erin", "erin@example.com")

	status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":30,"currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)

	status, envelope := app.doJSON(t, http.MethodPost, walletPath(userID, "withdraw"),
		`{"amount":30.001,"currency":"USD"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "WLT_006", envelope["error_code"])

	// The balance is untouched by the rejected withdrawal.
	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 30, data(t, envelope)["balances"].(map[string]any)["USD"], 1e-9)
}

func TestIntegration_Convert_InvalidRate(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Frank", "frank@example.com")

	status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":10,"currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)

	// Explicit non-positive rate.
	status, envelope := app.doJSON(t, http.MethodPost, walletPath(userID, "convert"),
		`{"amount":5,"from_currency":"USD","to_currency":"MXN","rate":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "WLT_007", envelope["error_code"])

	// Same-currency conversion has no default rate.
	status, envelope = app.doJSON(t, http.MethodPost, walletPath(userID, "convert"),
		`{"amount":5,"from_currency":"USD","to_currency":"USD"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "WLT_007", envelope["error_code"])
}

// TestIntegration_MutationAtomicity verifies that when the ledger append
// fails mid-mutation, the already-applied balance write rolls back with it.
func TestIntegration_MutationAtomicity(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Grace", "grace@example.com")

	status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":100,"currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)

	app.txRepo.failCreate = errors.New("insert failed")

	status, envelope := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":50,"currency":"USD"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "SYS_001", envelope["error_code"])

	// Neither the balance nor the ledger carries the failed mutation.
	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 100, data(t, envelope)["balances"].(map[string]any)["USD"], 1e-9)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "transactions"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data(t, envelope)["fund_transactions"].([]any), 1)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "reconciliation"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", data(t, envelope)["report"].(map[string]any)["USD"])
}

// TestIntegration_Convert_FractionalAmountReconciles converts an amount whose
// credit needs more decimal places than the scale-3 money columns hold. The
// quantized credit must be what the balance receives, the fund leg records,
// and reconciliation recomputes, so the wallet still reconciles clean.
func TestIntegration_Convert_FractionalAmountReconciles(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Ivan", "ivan@example.com")

	status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":100.001,"currency":"MXN"}`)
	require.Equal(t, http.StatusCreated, status)

	// 100.001 * 0.053 = 5.300053, stored as 5.300.
	status, _ = app.doJSON(t, http.MethodPost, walletPath(userID, "convert"),
		`{"amount":100.001,"from_currency":"MXN","to_currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)

	status, envelope := app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	balances := data(t, envelope)["balances"].(map[string]any)
	assert.InDelta(t, 5.3, balances["USD"], 1e-9)
	assert.InDelta(t, 0, balances["MXN"], 1e-9)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "reconciliation"), "")
	require.Equal(t, http.StatusOK, status)
	report := data(t, envelope)["report"].(map[string]any)
	assert.Equal(t, "OK", report["USD"])
	assert.Equal(t, "OK", report["MXN"])
}

// TestIntegration_Convert_IntoExistingBalance converts into a currency the
// wallet already holds: 200 USD / 200 MXN, then 100 USD -> MXN at the
// default 18.70 leaves USD 100 and MXN 200 + 1870 = 2070.
func TestIntegration_Convert_IntoExistingBalance(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Judy", "judy@example.com")

	for _, body := range []string{
		`{"amount":200,"currency":"USD"}`,
		`{"amount":200,"currency":"MXN"}`,
	} {
		status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"), body)
		require.Equal(t, http.StatusCreated, status)
	}

	status, envelope := app.doJSON(t, http.MethodPost, walletPath(userID, "convert"),
		`{"amount":100,"from_currency":"USD","to_currency":"MXN"}`)
	require.Equal(t, http.StatusCreated, status)
	d := data(t, envelope)
	assert.Equal(t, "USD", d["currency"])
	assert.Equal(t, "MXN", d["to_currency"])
	assert.InDelta(t, 100, d["amount"], 1e-9)
	assert.InDelta(t, 18.70, d["exchange_rate"], 1e-9)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	balances := data(t, envelope)["balances"].(map[string]any)
	assert.InDelta(t, 100, balances["USD"], 1e-9)
	assert.InDelta(t, 2070, balances["MXN"], 1e-9)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "reconciliation"), "")
	require.Equal(t, http.StatusOK, status)
	report := data(t, envelope)["report"].(map[string]any)
	assert.Equal(t, "OK", report["USD"])
	assert.Equal(t, "OK", report["MXN"])
}

// TestIntegration_FullFlowExactBalances mixes withdrawals, fractional funds,
// and conversions at both default and custom rates, and pins the exact final
// balances: USD 100 - 50 + 5.3 - 20 = 35.3 and
// MXN 200 + 48.95 - 100 + 20*21 = 568.95.
func TestIntegration_FullFlowExactBalances(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Kim", "kim@example.com")

	steps := []struct {
		op   string
		body string
	}{
		{"fund", `{"amount":100,"currency":"USD"}`},
		{"fund", `{"amount":200,"currency":"MXN"}`},
		{"withdraw", `{"amount":50,"currency":"USD"}`},
		{"fund", `{"amount":48.95,"currency":"MXN"}`},
		{"convert", `{"amount":100,"from_currency":"MXN","to_currency":"USD"}`},
		{"convert", `{"amount":20,"from_currency":"USD","to_currency":"MXN","rate":21}`},
	}
	for _, step := range steps {
		status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, step.op), step.body)
		require.Equal(t, http.StatusCreated, status, "step %s %s", step.op, step.body)
	}

	status, envelope := app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	balances := data(t, envelope)["balances"].(map[string]any)
	assert.InDelta(t, 35.3, balances["USD"], 1e-9)
	assert.InDelta(t, 568.95, balances["MXN"], 1e-9)

	status, envelope = app.doJSON(t, http.MethodGet, walletPath(userID, "reconciliation"), "")
	require.Equal(t, http.StatusOK, status)
	report := data(t, envelope)["report"].(map[string]any)
	assert.Equal(t, "OK", report["USD"])
	assert.Equal(t, "OK", report["MXN"])
}

// TestIntegration_BalancesCacheInvalidation checks the balances view stays
// consistent across the cache: a cached read followed by a mutation must not
// serve the stale view.
func TestIntegration_BalancesCacheInvalidation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID := app.createUser(t, "Heidi", "heidi@example.com")

	status, _ := app.doJSON(t, http.MethodPost, walletPath(userID, "fund"),
		`{"amount":40,"currency":"MXN"}`)
	require.Equal(t, http.StatusCreated, status)

	// First read populates the cache, second read is served from it.
	for i := 0; i < 2; i++ {
		status, envelope := app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
		require.Equal(t, http.StatusOK, status)
		assert.InDelta(t, 40, data(t, envelope)["balances"].(map[string]any)["MXN"], 1e-9)
	}

	status, _ = app.doJSON(t, http.MethodPost, walletPath(userID, "withdraw"),
		`{"amount":15,"currency":"MXN"}`)
	require.Equal(t, http.StatusCreated, status)

	status, envelope := app.doJSON(t, http.MethodGet, walletPath(userID, "balances"), "")
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 25, data(t, envelope)["balances"].(map[string]any)["MXN"], 1e-9)
}
