package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopmarked/dashboard/internal/auth"
	"github.com/loopmarked/dashboard/internal/config"
	"github.com/loopmarked/dashboard/internal/realtime"
	"github.com/loopmarked/dashboard/internal/store"
	"github.com/loopmarked/dashboard/internal/store/sqlite"
)

type testEnv struct {
	store  *realtime.FeedStore
	auth   *auth.Service
	server *http.Server
	ts     *httptest.Server
}

// newTestEnv starts the full router over an in-memory SQLite store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	feed := realtime.WithFeed(st, realtime.NewHub(8, &logger))

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, true)

	server := NewServer(feed, authService, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{store: feed, auth: authService, server: server, ts: ts}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.auth.IssueDevToken(context.Background(), userID, "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) conversation(t *testing.T, listingID, buyerID, sellerID string) *store.Conversation {
	t.Helper()
	conv, err := e.store.CreateConversation(context.Background(), listingID, buyerID, sellerID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

// do runs a request against the router and decodes a JSON body into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(resp, req)

	if out != nil && resp.Code < 300 {
		if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
			t.Fatalf("failed to unmarshal response: %v (%s)", err, resp.Body.String())
		}
	}
	return resp.Code
}
