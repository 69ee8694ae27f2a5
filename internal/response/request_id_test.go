package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func doRequest(t *testing.T, headerID string) (ctxID string, echoed string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		ctxID = c.GetString(ContextKeyRequestID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if headerID != "" {
		req.Header.Set("X-Request-ID", headerID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return ctxID, w.Header().Get("X-Request-ID")
}

func TestRequestIDMiddleware_EchoesClientID(t *testing.T) {
	want := uuid.New().String()
	ctxID, echoed := doRequest(t, want)
	if ctxID != want || echoed != want {
		t.Fatalf("expected client ID %q to be propagated, got ctx=%q header=%q", want, ctxID, echoed)
	}
}

func TestRequestIDMiddleware_GeneratesWhenMissing(t *testing.T) {
	ctxID, echoed := doRequest(t, "")
	if ctxID == "" || ctxID != echoed {
		t.Fatalf("expected a generated ID in both ctx and header, got ctx=%q header=%q", ctxID, echoed)
	}
	if _, err := uuid.Parse(ctxID); err != nil {
		t.Fatalf("generated ID %q is not a UUID: %v", ctxID, err)
	}
}

func TestRequestIDMiddleware_ReplacesOversizedID(t *testing.T) {
	oversized := strings.Repeat("x", maxRequestIDLen+1)
	ctxID, echoed := doRequest(t, oversized)
	if ctxID == oversized || echoed == oversized {
		t.Fatal("oversized X-Request-ID must not be propagated")
	}
	if _, err := uuid.Parse(ctxID); err != nil {
		t.Fatalf("replacement ID %q is not a UUID: %v", ctxID, err)
	}
}
