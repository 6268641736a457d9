package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/forum-archive-api/internal/models"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

func newJWTRouter(v TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(v), func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		c.String(http.StatusOK, claims.(*models.JWTClaims).UserID)
	})
	return r
}

func TestJWTMiddleware(t *testing.T) {
	v := &validatorStub{claims: &models.JWTClaims{UserID: "user-1"}}
	r := newJWTRouter(v)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
	assert.Equal(t, "abc", v.token)
}

func TestJWTMiddlewareRejects(t *testing.T) {
	cases := map[string]struct {
		header string
		err    error
	}{
		"missing":   {header: ""},
		"malformed": {header: "Token abc"},
		"invalid":   {header: "Bearer abc", err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newJWTRouter(&validatorStub{err: tc.err})
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

type observerStub struct {
	mu    sync.Mutex
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, method+" "+path)
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/jobs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/jobs/1", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"GET /jobs/:id", "GET unmatched"}, obs.paths)
}
