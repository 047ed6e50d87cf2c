package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"creditchain/app/apptest"
	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/gateway/middleware"
	"creditchain/native/redbank"
	"creditchain/services/indexer"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T, mutate func(*Config)) (*apptest.Harness, *Server) {
	t.Helper()
	h := apptest.New(t)
	cfg := Config{
		Auth: middleware.AuthConfig{Enabled: true, HMACSecret: testSecret, AllowAnonymous: true},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(h.App, cfg, nil)
	require.NoError(t, err)
	return h, s
}

func token(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func do(s *Server, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res := httptest.NewRecorder()
	s.Handler().ServeHTTP(res, req)
	return res
}

func depositRequest(amount int64) map[string]any {
	return map[string]any{
		"contract": "redbank",
		"msg":      map[string]any{"deposit": map[string]any{}},
		"funds":    []types.Coin{apptest.Coin(apptest.Osmo, amount)},
	}
}

func TestHealth(t *testing.T) {
	h, s := newTestServer(t, nil)
	res := do(s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, res.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, h.App.Env().ChainID, body["chainId"])
}

func TestExecuteDepositAndQuery(t *testing.T) {
	h, s := newTestServer(t, nil)
	user := apptest.Addr("http-user")
	h.Fund(user, apptest.Coin(apptest.Osmo, 5_000))

	res := do(s, http.MethodPost, "/v1/execute", token(t, user), depositRequest(5_000))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var result core.Result
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	require.Equal(t, user, result.Sender)
	require.Equal(t, h.App.Addresses.RedBank, result.Contract)
	require.NotEmpty(t, result.TxHash)

	res = do(s, http.MethodPost, "/v1/query/redbank/user_collateral", "", map[string]any{"user": user, "denom": apptest.Osmo})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Contains(t, res.Body.String(), apptest.Osmo)

	res = do(s, http.MethodGet, "/v1/query", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var modules map[string][]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &modules))
	require.Contains(t, modules["creditmanager"], "health")
}

func TestExecuteRejections(t *testing.T) {
	_, s := newTestServer(t, nil)
	user := apptest.Addr("http-user")

	res := do(s, http.MethodPost, "/v1/execute", "", depositRequest(1))
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = do(s, http.MethodPost, "/v1/execute", token(t, user), map[string]any{
		"contract": "nope",
		"msg":      map[string]any{"deposit": map[string]any{}},
	})
	require.Equal(t, http.StatusNotFound, res.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, cerrors.Codespace, body.Codespace)
	require.Equal(t, cerrors.ErrUnknownContract.ABCICode(), body.Code)

	res = do(s, http.MethodPost, "/v1/execute", token(t, user), map[string]any{
		"contract": "redbank",
		"msg":      map[string]any{"deposit": map[string]any{}, "withdraw": map[string]any{}},
	})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = do(s, http.MethodPost, "/v1/execute", token(t, user), map[string]any{"contract": "redbank"})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = do(s, http.MethodPost, "/v1/query/redbank/nope", "", nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"unknown contract": {err: errorsmod.Wrap(cerrors.ErrUnknownContract, "x"), status: http.StatusNotFound},
		"missing price":    {err: cerrors.ErrPriceNotFound, status: http.StatusNotFound},
		"validation":       {err: errorsmod.Wrap(cerrors.ErrValidation, "bad"), status: http.StatusBadRequest},
		"unauthorized":     {err: cerrors.ErrUnauthorized, status: http.StatusForbidden},
		"paused":           {err: cerrors.ErrModulePaused, status: http.StatusServiceUnavailable},
		"protocol":         {err: cerrors.ErrAboveMaxLTV, status: http.StatusUnprocessableEntity},
		"timeout":          {err: fmt.Errorf("execute: %w", context.DeadlineExceeded), status: http.StatusGatewayTimeout},
		"internal":         {err: fmt.Errorf("disk on fire"), status: http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.status, statusFor(tc.err))
		})
	}
}

func TestInternalErrorsAreRedacted(t *testing.T) {
	res := httptest.NewRecorder()
	writeAppError(res, fmt.Errorf("leveldb: corrupted block at /var/lib/credit"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.NotContains(t, res.Body.String(), "/var/lib/credit")
}

func TestExecuteRateLimited(t *testing.T) {
	h, s := newTestServer(t, func(cfg *Config) {
		cfg.RateLimits = map[string]middleware.RateLimit{PolicyExecute: {RatePerSecond: 0.001, Burst: 1}}
	})
	user := apptest.Addr("busy-user")
	h.Fund(user, apptest.Coin(apptest.Osmo, 2))
	bearer := token(t, user)

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/v1/execute", bearer, depositRequest(1)).Code)
	res := do(s, http.MethodPost, "/v1/execute", bearer, depositRequest(1))
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.NotEmpty(t, res.Header().Get("Retry-After"))

	// Queries use their own policy.
	require.Equal(t, http.StatusOK, do(s, http.MethodGet, "/v1/query", "", nil).Code)
}

func TestStreamFiltersByType(t *testing.T) {
	h, s := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws?types=" + events.TypeRedBankDeposit
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.hub.size() == 1 }, time.Second, 10*time.Millisecond)

	user := apptest.Addr("stream-user")
	h.Fund(user, apptest.Coin(apptest.Osmo, 10))
	res := h.Exec(user, h.App.Addresses.RedBank, redbank.Deposit{}, apptest.Coin(apptest.Osmo, 10))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var got core.Result
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, res.TxHash, got.TxHash)
	require.NotEmpty(t, got.Events)
	for _, ev := range got.Events {
		require.Equal(t, events.TypeRedBankDeposit, ev.Type)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hb := newHub(1)
	slow := hb.subscribe(nil)
	filtered := hb.subscribe([]string{"creditmanager."})

	res := core.Result{TxHash: "a", Events: []types.Event{{Type: events.TypeRedBankDeposit}}}
	hb.publish(res)
	hb.publish(res)

	select {
	case <-slow.dropped:
	default:
		t.Fatal("expected slow subscriber to be dropped")
	}
	require.Equal(t, 1, hb.size())
	require.Empty(t, filtered.ch)
}

type fakeJournal struct {
	filter indexer.EventFilter
	rows   []indexer.EventRecord
}

func (f *fakeJournal) Events(_ context.Context, filter indexer.EventFilter) ([]indexer.EventRecord, error) {
	f.filter = filter
	return f.rows, nil
}

func (f *fakeJournal) ExportLiquidations(_ context.Context, w io.Writer, _ uint64) (int, error) {
	n, err := w.Write([]byte("PAR1"))
	return n, err
}

func TestJournalRoutes(t *testing.T) {
	journal := &fakeJournal{rows: []indexer.EventRecord{{TxHash: "abc", Type: events.TypeRedBankDeposit}}}
	_, s := newTestServer(t, func(cfg *Config) { cfg.Journal = journal })

	res := do(s, http.MethodGet, "/v1/events?type=redbank.&from_height=4&limit=10", "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, indexer.EventFilter{Type: "redbank.", FromHeight: 4, Limit: 10}, journal.filter)
	require.Contains(t, res.Body.String(), "abc")

	res = do(s, http.MethodGet, "/v1/events?from_height=x", "", nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = do(s, http.MethodGet, "/v1/liquidations/export", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = do(s, http.MethodGet, "/v1/liquidations/export", token(t, "analyst"), nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "PAR1", res.Body.String())
}

func TestJournalRoutesAbsentWithoutIndexer(t *testing.T) {
	_, s := newTestServer(t, nil)
	res := do(s, http.MethodGet, "/v1/events", "", nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}
