package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubTokens accepts exactly one token string.
type stubTokens struct{ valid, userID string }

func (s stubTokens) ValidateToken(token string) (*jwt.Token, error) {
	if token != s.valid {
		return nil, errors.New("bad token")
	}
	return &jwt.Token{Valid: true, Claims: jwt.MapClaims{"sub": s.userID}}, nil
}

func (s stubTokens) GetUserIDFromToken(token *jwt.Token) (string, error) {
	return token.Claims.(jwt.MapClaims)["sub"].(string), nil
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(stubTokens{valid: "good", userID: "u1"}))
	r.GET("/me", func(c *gin.Context) {
		userID, ok := RequireUserID(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, userID)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		status int
		body   string
	}{
		{"bearer", "Authorization", "Bearer good", http.StatusOK, "u1"},
		{"legacy header", "x-auth-token", "good", http.StatusOK, "u1"},
		{"missing", "", "", http.StatusUnauthorized, "No token, authorization denied"},
		{"malformed", "Authorization", "Token good", http.StatusUnauthorized, "No token, authorization denied"},
		{"invalid", "Authorization", "Bearer bad", http.StatusUnauthorized, "Token is not valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			authRouter().ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := gin.New()
	r.Use(m.Handler())
	r.GET("/api/groups/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/groups/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/api/groups/:id", "GET", "200")); got != 3 {
		t.Errorf("route counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Errorf("unmatched counter = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Errorf("histogram series = %d, want 2", n)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	out := buf.String()
	if !strings.Contains(out, "level=INFO msg=request method=GET path=/ok status=200") {
		t.Errorf("missing info line:\n%s", out)
	}
	if !strings.Contains(out, "level=ERROR msg=request method=GET path=/boom status=500") {
		t.Errorf("missing error line:\n%s", out)
	}
}
