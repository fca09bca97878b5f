package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/middleware"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("SDLP_JWT_SECRET", "handler-test-secret-32-characters!")
	os.Exit(m.Run())
}

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// seedIdentity injects an authenticated caller the way the auth middleware
// would, so handlers under test see a populated context.
func seedIdentity(identity *auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.IdentityKey, identity)
		c.Next()
	}
}

func analystIdentity() *auth.Identity {
	return &auth.Identity{ID: "user-1", Username: "alice", Role: "Analyst"}
}

// doJSON performs a request with an optional JSON body against the router.
func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
