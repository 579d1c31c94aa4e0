package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/clock"
	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/ledger"
	"github.com/stellarsave/stellarsave/internal/metrics"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/query"
	"github.com/stellarsave/stellarsave/internal/store"
	"github.com/stellarsave/stellarsave/internal/testutil"
)

var epoch = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

const (
	alice = "GALICE"
	bob   = "GBOB"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	server *httptest.Server
	engine *engine.Engine
	faulty *gateway.Faulty
	ledger *ledger.Ledger
	clock  *testutil.Clock
}

func newEngine(clk clock.Clock, gw gateway.Gateway, m *metrics.Metrics) *engine.Engine {
	cache := query.New(clk, query.WithMetrics(m), query.WithLogger(discard))
	return engine.New(store.New(clk), cache, gateway.NewContracts(gw, gateway.DefaultAddresses), clk,
		engine.WithIDGenerator(testutil.NewSequentialIDs("id")),
		engine.WithLogger(discard))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clk := testutil.NewClock(epoch)
	l, err := ledger.Open(":memory:", ledger.WithClock(clk), ledger.WithLogger(discard))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	lg := ledger.NewGateway(l, gateway.DefaultAddresses)
	faulty := gateway.NewFaulty(lg)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := newEngine(clk, faulty, m)

	base := []Option{WithRelay(lg), WithMetrics(m, reg), WithLogger(discard), WithClock(clk)}
	srv := httptest.NewServer(New(e, append(base, opts...)...).Handler())
	t.Cleanup(srv.Close)

	return &fixture{server: srv, engine: e, faulty: faulty, ledger: l, clock: clk}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func errorKind(t *testing.T, resp *http.Response) model.Kind {
	t.Helper()
	body := decodeJSON[errorBody](t, resp)
	require.NotNil(t, body.Error)
	return body.Error.Kind
}

func (f *fixture) createChallenge(t *testing.T) model.Challenge {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/challenges", map[string]any{
		"creator":        alice,
		"name":           "Emergency fund",
		"goal_amount":    "1000",
		"weekly_amount":  "50",
		"duration_weeks": 12,
		"participants":   []string{bob},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeJSON[model.Challenge](t, resp)
}

func TestChallengeLifecycle(t *testing.T) {
	f := newFixture(t)
	c := f.createChallenge(t)
	assert.Equal(t, []string{alice, bob}, c.Participants)

	resp := f.do(t, http.MethodPost, "/api/v1/challenges/"+c.ID+"/contributions",
		map[string]string{"contributor": bob, "amount": "50"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	contribution := decodeJSON[model.Contribution](t, resp)
	assert.False(t, contribution.IsPending())

	resp = f.do(t, http.MethodGet, "/api/v1/challenges/"+c.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decodeJSON[model.ChallengeProgress](t, resp)
	assert.True(t, dec("5").Equal(p.ProgressPercentage), p.ProgressPercentage.String())
	assert.True(t, dec("950").Equal(p.RemainingAmount))

	resp = f.do(t, http.MethodGet, "/api/v1/challenges/"+c.ID+"/participants/"+bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pp := decodeJSON[model.ParticipantProgress](t, resp)
	assert.True(t, dec("50").Equal(pp.TotalContributed))

	resp = f.do(t, http.MethodGet, "/api/v1/users/"+alice+"/challenges?status=active&sort_by=deadline", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeJSON[[]model.Challenge](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	resp = f.do(t, http.MethodGet, "/api/v1/users/"+bob+"/contributions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeJSON[[]model.Contribution](t, resp), 1)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)
	c := f.createChallenge(t)

	resp := f.do(t, http.MethodGet, "/api/v1/challenges/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.KindChallengeNotFound, errorKind(t, resp))

	resp = f.do(t, http.MethodGet, "/api/v1/users/"+alice+"/challenges?status=sleeping", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.KindValidationError, errorKind(t, resp))

	resp = f.do(t, http.MethodPost, "/api/v1/challenges/"+c.ID+"/contributions",
		map[string]string{"contributor": "GMALLORY", "amount": "10"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, model.KindNotParticipant, errorKind(t, resp))

	f.faulty.FailNextKind(gateway.MethodContribute, model.KindInsufficientBalance, "balance too low")
	resp = f.do(t, http.MethodPost, "/api/v1/challenges/"+c.ID+"/contributions",
		map[string]string{"contributor": alice, "amount": "10"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.KindInsufficientBalance, errorKind(t, resp))

	resp = f.do(t, http.MethodPost, "/api/v1/challenges", map[string]any{"creator": alice, "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := map[model.Kind]int{
		model.KindValidationError:      http.StatusBadRequest,
		model.KindUnsupportedCorridor:  http.StatusBadRequest,
		model.KindPoolNotFound:         http.StatusNotFound,
		model.KindUnauthorized:         http.StatusForbidden,
		model.KindPositionLocked:       http.StatusConflict,
		model.KindComplianceError:      http.StatusUnprocessableEntity,
		model.KindMoneyGramError:       http.StatusBadGateway,
		model.Kind("SOMETHING_ELSE"):   http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, StatusFor(kind), string(kind))
	}
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	c := f.createChallenge(t)
	resp := f.do(t, http.MethodPost, "/api/v1/challenges/"+c.ID+"/contributions",
		map[string]string{"contributor": alice, "amount": "100"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeJSON[[]model.Notification](t, resp)
	require.NotEmpty(t, list)

	resp = f.do(t, http.MethodPost, "/api/v1/notifications/"+list[0].ID+"/read", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/v1/notifications/nope/read", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/notifications/read-all", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, f.engine.Store().UnreadNotifications())
}

func TestYieldRoutes(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/pools", map[string]any{
		"admin":            ledger.DefaultAdmin,
		"name":             "Naira corridor",
		"base_currency":    "USDC",
		"target_currency":  "NGN",
		"apy_basis_points": 800,
		"min_deposit":      "10",
		"max_deposit":      "5000",
		"lock_days":        7,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pool := decodeJSON[model.YieldPool](t, resp)

	resp = f.do(t, http.MethodPost, "/api/v1/pools/"+pool.ID+"/deposits",
		map[string]any{"user": alice, "amount": "100"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/pools/"+pool.ID+"/deposits",
		map[string]any{"user": alice, "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.KindMinDepositNotMet, errorKind(t, resp))

	resp = f.do(t, http.MethodGet, "/api/v1/tvl", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tvl := decodeJSON[map[string]decimal.Decimal](t, resp)
	assert.True(t, dec("100").Equal(tvl["total_value_locked"]))

	resp = f.do(t, http.MethodGet, "/api/v1/pools/"+pool.ID+"/projection?amount=1000&days=365", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/v1/pools/"+pool.ID+"/projection?amount=1000&days=soon", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/transfers/quote?from=USD&to=NGN&amount=200", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/v1/rates/USDC-NGN", map[string]any{"admin": bob, "rate": "1500"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = f.do(t, http.MethodPut, "/api/v1/rates/USDC-NGN", map[string]any{"admin": ledger.DefaultAdmin, "rate": "1500"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/corridors", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decodeJSON[[]string](t, resp), "US-NG")
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.createChallenge(t)

	resp := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "healthy", health["status"])

	resp = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `stellarsave_http_requests_total{method="POST",route="/api/v1/challenges",status="201"} 1`)
	assert.Contains(t, text, `stellarsave_mutations_total`)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, WithRateLimit(1, 1))

	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestVisitorSweep(t *testing.T) {
	v := newVisitorLimiter(1, 1)
	v.get("10.0.0.1", epoch)
	v.get("10.0.0.2", epoch.Add(2*time.Minute))
	assert.Equal(t, 1, v.sweep(epoch.Add(4*time.Minute)))
	assert.Len(t, v.visitors, 1)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, WithCORS("https://app.example"))
	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

// A remote engine pointed at the relay sees the server's ledger.
func TestRelay_RoundTripThroughRPCGateway(t *testing.T) {
	f := newFixture(t)
	remote := newEngine(f.clock, gateway.NewRPC(f.server.URL), metrics.New(nil))
	ctx := context.Background()

	c, err := remote.CreateChallenge(ctx, model.CreateChallengeRequest{
		Creator:       alice,
		Name:          "Relayed fund",
		GoalAmount:    dec("500"),
		WeeklyAmount:  dec("25"),
		DurationWeeks: 20,
	})
	require.NoError(t, err)

	_, err = remote.Contribute(ctx, model.ContributeRequest{ChallengeID: c.ID, Contributor: alice, Amount: dec("25")})
	require.NoError(t, err)

	local, err := f.engine.Challenge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Relayed fund", local.Name)
	assert.True(t, dec("25").Equal(local.CurrentAmount))

	_, err = remote.Contribute(ctx, model.ContributeRequest{ChallengeID: c.ID, Contributor: bob, Amount: dec("5")})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindNotParticipant), err.Error())

	_, err = remote.Challenge(ctx, "missing")
	assert.True(t, model.IsKind(err, model.KindChallengeNotFound))
}

func TestRelay_RejectsMalformedCalls(t *testing.T) {
	f := newFixture(t)
	resp, err := f.server.Client().Post(f.server.URL+"/invoke", "application/json", strings.NewReader(`{"contract":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
