package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"sharepool/core"
	"sharepool/core/tx"
	"sharepool/core/types"
	"sharepool/crypto"
	"sharepool/indexer"
	"sharepool/native/pool"
	"sharepool/storage"
)

const (
	testChainID = uint64(11)
	unit        = uint64(1_000_000)
)

var testMint = crypto.MustAddress(bytes.Repeat([]byte{0xC0}, crypto.AddressLength))

type testEnv struct {
	node   *core.Node
	issuer *crypto.PrivateKey
	server *Server
	hub    *Hub
	h      http.Handler
}

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func newTestEnv(t *testing.T, cfg ServerConfig, opts ...Option) *testEnv {
	t.Helper()
	issuer := newKey(t)
	node, err := core.NewNode(storage.NewMemDB(), core.Config{
		ChainID:        testChainID,
		CurrencyMint:   testMint,
		CurrencyIssuer: issuer.PubKey().Address(),
	})
	require.NoError(t, err)
	hub := NewHub(4)
	node.SetEmitter(hub)
	server := NewServer(node, cfg, append([]Option{WithHub(hub)}, opts...)...)
	return &testEnv{node: node, issuer: issuer, server: server, hub: hub, h: server.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5000"
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) instruction(t *testing.T, typ tx.Type, payer *crypto.PrivateKey, params interface{}, cosigners ...*crypto.PrivateKey) []byte {
	t.Helper()
	nonce, err := e.node.Nonce(payer.PubKey().Address())
	require.NoError(t, err)
	ins, err := tx.New(typ, testChainID, nonce, payer.PubKey().Address(), params)
	require.NoError(t, err)
	for _, key := range append([]*crypto.PrivateKey{payer}, cosigners...) {
		require.NoError(t, ins.Sign(key))
	}
	raw, err := json.Marshal(ins)
	require.NoError(t, err)
	return raw
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var resp errorResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, code, resp.Error)
}

func TestHealthzAndRequestID(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	rec = httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	require.Equal(t, "trace-me", rec.Header().Get(RequestIDHeader))

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitAndQueryPool(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	creator, reference := newKey(t), newKey(t)
	creatorAddr := creator.PubKey().Address()

	rec := env.do(t, http.MethodPost, "/v1/instructions",
		env.instruction(t, tx.TypeMintCurrency, env.issuer, tx.MintCurrencyParams{To: creatorAddr, Amount: 10_000 * unit}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/instructions", env.instruction(t, tx.TypeCreatePool, creator, tx.CreatePoolParams{
		Creator:   creatorAddr,
		Reference: reference.PubKey().Address(),
		Authority: creatorAddr,
		Seed:      100_000 * unit,
		Shares:    100,
		Deposit:   3_000 * unit,
		Name:      "Octo Pool",
		Symbol:    "OCTO",
	}, reference))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var receipt core.Receipt
	decodeBody(t, rec, &receipt)
	require.True(t, strings.HasPrefix(receipt.Hash, "0x"))
	require.Len(t, receipt.Events, 1)
	require.Equal(t, pool.EventTypePoolCreated, receipt.Events[0].Type)

	poolAddr := pool.PoolAddress(reference.PubKey().Address())
	rec = env.do(t, http.MethodGet, "/v1/derive/pool/"+reference.PubKey().Address().String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var derived map[string]string
	decodeBody(t, rec, &derived)
	require.Equal(t, poolAddr.String(), derived["pool"])

	rec = env.do(t, http.MethodGet, "/v1/pools/"+poolAddr.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view poolView
	decodeBody(t, rec, &view)
	require.Equal(t, "3", view.Minted)
	require.Equal(t, "97", view.Available)
	require.Equal(t, u64(1_000*unit), view.PricePerShare)
	require.Equal(t, "OCTO", view.Symbol)

	rec = env.do(t, http.MethodGet, "/v1/pools/"+poolAddr.String()+"/distribution", nil)
	requireError(t, rec, http.StatusNotFound, "NotFound")

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/pools/%s/claims/%s", poolAddr, creatorAddr), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var claim claimView
	decodeBody(t, rec, &claim)
	require.Equal(t, "3", claim.Held)
	require.Equal(t, "0", claim.Claimable)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/balances/%s", creatorAddr, testMint), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance map[string]interface{}
	decodeBody(t, rec, &balance)
	require.Equal(t, u64(7_000*unit), balance["amount"])

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/nonce", creatorAddr), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var nonce map[string]interface{}
	decodeBody(t, rec, &nonce)
	require.Equal(t, float64(1), nonce["nonce"])

	rec = env.do(t, http.MethodGet, "/v1/pools/"+pool.PoolAddress(creatorAddr).String(), nil)
	requireError(t, rec, http.StatusNotFound, "PoolNotFound")
}

func TestSubmitErrorMapping(t *testing.T) {
	env := newTestEnv(t, ServerConfig{MaxBodyBytes: 4096})
	alice := newKey(t)
	aliceAddr := alice.PubKey().Address()

	payload := env.instruction(t, tx.TypeMintCurrency, env.issuer, tx.MintCurrencyParams{To: aliceAddr, Amount: unit})
	rec := env.do(t, http.MethodPost, "/v1/instructions", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/v1/instructions", payload)
	requireError(t, rec, http.StatusConflict, "NonceMismatch")

	rec = env.do(t, http.MethodPost, "/v1/instructions", env.instruction(t, tx.TypeMintCurrency, alice, tx.MintCurrencyParams{To: aliceAddr, Amount: unit}))
	requireError(t, rec, http.StatusUnauthorized, "MissingSignature")

	rec = env.do(t, http.MethodPost, "/v1/instructions", env.instruction(t, tx.TypeTransfer, alice, tx.TransferParams{From: aliceAddr, To: env.issuer.PubKey().Address(), Amount: 5 * unit}))
	requireError(t, rec, http.StatusUnprocessableEntity, "InsufficientFunds")

	rec = env.do(t, http.MethodPost, "/v1/instructions", []byte(`{"type":`))
	requireError(t, rec, http.StatusBadRequest, "InvalidParams")

	rec = env.do(t, http.MethodPost, "/v1/instructions", bytes.Repeat([]byte(" "), 8192))
	requireError(t, rec, http.StatusRequestEntityTooLarge, "InvalidParams")

	rec = env.do(t, http.MethodGet, "/v1/pools/not-an-address", nil)
	requireError(t, rec, http.StatusBadRequest, "InvalidParams")
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RateLimitPerSec: 1, RateLimitBurst: 1})
	now := time.Unix(1_700_000_000, 0)
	env.server.limiter.clockNow = func() time.Time { return now }

	path := "/v1/accounts/" + env.issuer.PubKey().Address().String() + "/nonce"
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, nil).Code)
	requireError(t, env.do(t, http.MethodGet, path, nil), http.StatusTooManyRequests, "RateLimited")

	// Health checks are not throttled.
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code)

	now = now.Add(time.Second)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, nil).Code)
}

type stubActivity struct {
	pool string
	rows []indexer.Activity
}

func (s *stubActivity) ListByPool(_ context.Context, pool string, after uint64, limit int) ([]indexer.Activity, error) {
	s.pool = pool
	var out []indexer.Activity
	for _, row := range s.rows {
		if row.Sequence > after {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestActivityEndpoint(t *testing.T) {
	poolAddr := pool.PoolAddress(crypto.MustAddress(bytes.Repeat([]byte{1}, 20)))
	path := "/v1/pools/" + poolAddr.String() + "/activity"

	env := newTestEnv(t, ServerConfig{})
	requireError(t, env.do(t, http.MethodGet, path, nil), http.StatusServiceUnavailable, "IndexerDisabled")

	src := &stubActivity{rows: []indexer.Activity{
		{Sequence: 1, Type: pool.EventTypePoolCreated, Pool: poolAddr.String()},
		{Sequence: 2, Type: pool.EventTypeSharesPurchased, Pool: poolAddr.String()},
	}}
	env = newTestEnv(t, ServerConfig{}, WithActivity(src))
	rec := env.do(t, http.MethodGet, path+"?after=1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Activity []indexer.Activity `json:"activity"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Activity, 1)
	require.Equal(t, pool.EventTypeSharesPurchased, resp.Activity[0].Type)
	require.Equal(t, poolAddr.String(), src.pool)

	requireError(t, env.do(t, http.MethodGet, path+"?after=x", nil), http.StatusBadRequest, "InvalidParams")
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	srv := httptest.NewServer(env.h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/events?type=pool.", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.hub.Emit(pool.WrapEvent(&types.Event{Type: pool.EventTypeProgramInitialized, Attributes: map[string]string{}}))
	env.hub.Emit(pool.WrapEvent(&types.Event{Type: pool.EventTypePoolClosed, Attributes: map[string]string{"pool": "sp1x"}}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, pool.EventTypePoolClosed, evt.Type)
	require.Equal(t, "sp1x", evt.Attributes["pool"])
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := NewHub(1)
	sub, cancel := hub.subscribe("")
	defer cancel()
	evt := pool.WrapEvent(pool.PoolClosedEvent(crypto.ZeroAddress))
	hub.Emit(evt)
	hub.Emit(evt)
	require.Equal(t, 0, hub.Subscribers())
	_, ok := <-sub.ch
	require.True(t, ok)
	_, ok = <-sub.ch
	require.False(t, ok)

	hub.Close()
	late, _ := hub.subscribe("")
	_, ok = <-late.ch
	require.False(t, ok)
}
