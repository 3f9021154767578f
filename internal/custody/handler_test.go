package custody_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/internal/custody"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	book, err := custody.NewMemoryLedger(uuid.New())
	require.NoError(t, err)
	h := custody.NewHandler(book, "AURA", zap.NewNop())

	alice := uuid.New()
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.ContextPrincipalID, alice) })
	r.GET("/accounts/me", h.Me)
	r.POST("/accounts/approve", h.Approve)
	r.POST("/accounts/:principal/credit", h.Credit)

	call := func(method, path string, body any) (int, custody.AccountResponse) {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var env struct {
			Data custody.AccountResponse `json:"data"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &env)
		return w.Code, env.Data
	}

	code, acct := call(http.MethodPost, "/accounts/"+alice.String()+"/credit", map[string]string{"amount": "1000"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000", acct.Balance)

	code, acct = call(http.MethodPost, "/accounts/approve", map[string]string{"amount": "750"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "750", acct.Allowance)

	code, acct = call(http.MethodGet, "/accounts/me", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, custody.AccountResponse{Principal: alice, Asset: "AURA", Balance: "1000", Allowance: "750"}, acct)

	code, _ = call(http.MethodPost, "/accounts/approve", map[string]string{"amount": "1.5"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(http.MethodPost, "/accounts/"+uuid.Nil.String()+"/credit", map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusBadRequest, code)
}
