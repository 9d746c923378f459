package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/imrishuroy/prize-arena-payments/internal/auth"
)

func init() { gin.SetMode(gin.TestMode) }

// captureLogs routes the global logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get(RequestIDHeader) == "" || w.Body.String() != w.Header().Get(RequestIDHeader) {
		t.Fatalf("expected generated id, header=%q body=%q", w.Header().Get(RequestIDHeader), w.Body.String())
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "rid-123")
	r.ServeHTTP(w, req)
	if w.Body.String() != "rid-123" {
		t.Fatalf("expected propagated id, got %q", w.Body.String())
	}
}

func TestLogger_AttachesContextLoggerAndLevels(t *testing.T) {
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/ok", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside")
		c.Status(http.StatusOK)
	})
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d: %s", len(lines), buf.String())
	}
	var inside, access, bad map[string]interface{}
	_ = json.Unmarshal([]byte(lines[0]), &inside)
	_ = json.Unmarshal([]byte(lines[1]), &access)
	_ = json.Unmarshal([]byte(lines[2]), &bad)
	if inside["request_id"] != "rid-1" || inside["message"] != "inside" {
		t.Fatalf("service log missing request fields: %v", inside)
	}
	if access["level"] != "info" || access["status"] != float64(200) || access["path"] != "/ok" {
		t.Fatalf("unexpected access line: %v", access)
	}
	if bad["level"] != "warn" {
		t.Fatalf("4xx should log at warn, got %v", bad["level"])
	}
}

func TestRecovery_ReturnsEnvelope(t *testing.T) {
	captureLogs(t)
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestRequireAuth(t *testing.T) {
	v := auth.NewVerifier("s3cret", "", []string{"ops@example.com"})
	userTok, _ := v.Issue("uid-1", "alice@example.com", "", time.Hour)
	adminTok, _ := v.Issue("uid-2", "ops@example.com", "", time.Hour)

	r := gin.New()
	r.GET("/me", RequireAuth(v), func(c *gin.Context) {
		id := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"uid": id.UID, "email": id.Email})
	})
	r.GET("/admin", RequireAuth(v), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		name, path, header string
		want               int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"not bearer", "/me", "Basic abc", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"valid", "/me", "Bearer " + userTok, http.StatusOK},
		{"lowercase scheme", "/me", "bearer " + userTok, http.StatusOK},
		{"admin as user", "/admin", "Bearer " + userTok, http.StatusForbidden},
		{"admin by email", "/admin", "Bearer " + adminTok, http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.want, w.Code, w.Body.String())
		}
	}
}
