package lifecycle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/internal/lifecycle"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeReceipts struct {
	keys map[string]bool
}

func (r *fakeReceipts) ReceiptExists(_ context.Context, key string) (bool, error) {
	return r.keys[key], nil
}

func (r *fakeReceipts) PresignReceipt(_ context.Context, key string) (string, time.Duration, error) {
	return "https://signed.example/" + key, 15 * time.Minute, nil
}

// asPrincipal stands in for JWT: the X-Principal header becomes the caller.
func asPrincipal(c *gin.Context) {
	if p, err := uuid.Parse(c.GetHeader("X-Principal")); err == nil {
		c.Set(auth.ContextPrincipalID, p)
	}
	c.Next()
}

func newRouter(f *fixture, receipts lifecycle.Receipts) *gin.Engine {
	h := lifecycle.NewHandler(f.m, receipts, zap.NewNop())
	r := gin.New()
	r.GET("/streams/:id", h.Get)
	r.GET("/streams/:id/claimable", h.Claimable)
	authed := r.Group("", asPrincipal)
	authed.POST("/streams", h.Create)
	authed.GET("/streams", h.List)
	authed.POST("/streams/:id/pause", h.Pause)
	authed.POST("/streams/:id/resume", h.Resume)
	authed.POST("/streams/:id/withdraw", h.Withdraw)
	authed.POST("/streams/:id/milestone", h.ReleaseMilestone)
	authed.POST("/streams/:id/cancel", h.Cancel)
	authed.GET("/streams/:id/receipts/:eventId/download-url", h.ReceiptURL)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    apperr.Code     `json:"code"`
}

func do(t *testing.T, r http.Handler, method, path string, caller uuid.UUID, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != uuid.Nil {
		req.Header.Set("X-Principal", caller.String())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeStream(t *testing.T, env envelope) lifecycle.StreamResponse {
	t.Helper()
	var s lifecycle.StreamResponse
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func TestHandler_StreamFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fund(t, 1500, 1500)
	r := newRouter(f, nil)

	code, env := do(t, r, http.MethodPost, "/streams", f.sender, map[string]any{
		"recipient":        f.recip,
		"deposit_amount":   "1000",
		"milestone_amount": "500",
		"start_time":       t0,
		"stop_time":        t0.Add(1000 * time.Second),
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decodeStream(t, env)
	assert.Equal(t, "1000", created.DepositAmount)
	assert.Equal(t, "1", created.RatePerSecond)
	assert.Equal(t, "0", created.Claimable)
	path := "/streams/" + strconv.FormatUint(created.ID, 10)

	f.clock.Advance(400 * time.Second)

	code, env = do(t, r, http.MethodGet, path+"/claimable", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, code)
	var claim lifecycle.ClaimableResponse
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	assert.Equal(t, "400", claim.Claimable)

	code, env = do(t, r, http.MethodPost, path+"/withdraw", f.recip, map[string]string{"amount": "300"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "300", decodeStream(t, env).WithdrawnAmount)

	code, env = do(t, r, http.MethodPost, path+"/pause", f.sender, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	paused := decodeStream(t, env)
	assert.Equal(t, "paused", string(paused.Status))
	require.NotNil(t, paused.PauseTime)

	code, env = do(t, r, http.MethodPost, path+"/pause", f.sender, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.CodeStreamAlreadyPaused, env.Code)

	code, env = do(t, r, http.MethodPost, path+"/milestone", f.auditor, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = do(t, r, http.MethodPost, path+"/resume", f.sender, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "milestone_unlocked", string(decodeStream(t, env).Status))

	code, env = do(t, r, http.MethodPost, path+"/cancel", f.sender, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "cancelled", string(decodeStream(t, env).Status))

	code, env = do(t, r, http.MethodGet, path, uuid.Nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", decodeStream(t, env).RemainingBalance)
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.create(t, 1000, 0, 1000*time.Second)
	path := "/streams/" + strconv.FormatUint(id, 10)
	r := newRouter(f, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		caller   uuid.UUID
		body     any
		wantCode int
		wantErr  apperr.Code
	}{
		{"unknown stream", http.MethodGet, "/streams/99", uuid.Nil, nil, http.StatusNotFound, apperr.CodeStreamNotFound},
		{"bad id", http.MethodGet, "/streams/abc", uuid.Nil, nil, http.StatusBadRequest, ""},
		{"no caller", http.MethodPost, path + "/pause", uuid.Nil, nil, http.StatusUnauthorized, ""},
		{"wrong principal", http.MethodPost, path + "/cancel", f.recip, nil, http.StatusForbidden, apperr.CodeUnauthorized},
		{"resume active", http.MethodPost, path + "/resume", f.sender, nil, http.StatusConflict, apperr.CodeStreamNotPaused},
		{"bad amount", http.MethodPost, path + "/withdraw", f.recip, map[string]string{"amount": "-5"}, http.StatusBadRequest, ""},
		{"over claimable", http.MethodPost, path + "/withdraw", f.recip, map[string]string{"amount": "5"}, http.StatusUnprocessableEntity, apperr.CodeInsufficientBalance},
		{"not auditor", http.MethodPost, path + "/milestone", f.sender, nil, http.StatusForbidden, apperr.CodeMissingCapability},
		{"bad role", http.MethodGet, "/streams?role=auditor", f.sender, nil, http.StatusBadRequest, ""},
		{"create without creator", http.MethodPost, "/streams", f.recip, map[string]any{
			"recipient": f.sender, "deposit_amount": "10", "start_time": t0, "stop_time": t0.Add(time.Second),
		}, http.StatusForbidden, apperr.CodeMissingCapability},
	}

	for _, tt := range tests {
		code, env := do(t, r, tt.method, tt.path, tt.caller, tt.body)
		assert.Equal(t, tt.wantCode, code, tt.name)
		assert.False(t, env.Success, tt.name)
		if tt.wantErr != "" {
			assert.Equal(t, tt.wantErr, env.Code, tt.name)
		}
	}
}

func TestHandler_List(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.create(t, 1000, 0, 1000*time.Second)
	r := newRouter(f, nil)

	code, env := do(t, r, http.MethodGet, "/streams?role=recipient", f.recip, nil)
	require.Equal(t, http.StatusOK, code)
	var list []lifecycle.StreamResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	code, env = do(t, r, http.MethodGet, "/streams?role=sender", f.recip, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list)
}

func TestHandler_ReceiptURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.create(t, 1000, 0, 1000*time.Second)
	ev := f.rec.Events()[0]
	key := "receipts/" + strconv.FormatUint(id, 10) + "/" + ev.ID.String() + ".json"
	r := newRouter(f, &fakeReceipts{keys: map[string]bool{key: true}})
	base := "/streams/" + strconv.FormatUint(id, 10) + "/receipts/"

	code, env := do(t, r, http.MethodGet, base+ev.ID.String()+"/download-url", f.recip, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var body map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "https://signed.example/"+key, body["url"])
	assert.EqualValues(t, 900, body["expires_in_seconds"])

	code, _ = do(t, r, http.MethodGet, base+ev.ID.String()+"/download-url", uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, r, http.MethodGet, base+uuid.NewString()+"/download-url", f.sender, nil)
	assert.Equal(t, http.StatusNotFound, code)

	unconfigured := newRouter(f, nil)
	code, _ = do(t, unconfigured, http.MethodGet, base+ev.ID.String()+"/download-url", f.sender, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
