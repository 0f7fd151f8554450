package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopchat/loopchat-server/internal/attach"
	"github.com/loopchat/loopchat-server/internal/auth"
	"github.com/loopchat/loopchat-server/internal/chat"
	"github.com/loopchat/loopchat-server/internal/config"
	"github.com/loopchat/loopchat-server/internal/friends"
	"github.com/loopchat/loopchat-server/internal/presence"
	"github.com/loopchat/loopchat-server/internal/store"
	"github.com/loopchat/loopchat-server/internal/store/sqlite"
)

type testEnv struct {
	ts       *httptest.Server
	store    store.Store
	auth     *auth.Service
	registry *presence.Registry
	cfg      config.Config
}

func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.SessionBuffer = 8
	cfg.WSRateLimit = 0
	cfg.UploadDir = t.TempDir()
	return cfg
}

// startTestServer builds the full HTTP surface against an in-memory
// store and returns the running test server plus its collaborators.
func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	registry := presence.NewRegistry()
	dispatcher := chat.NewDispatcher(registry, chat.EveryoneMembership{Presence: registry}, &logger)

	friendsService := friends.New(st)
	var authz chat.Authorizer = chat.AllowAll{}
	if cfg.RequireFriendship {
		authz = friendsService
	}
	chatService := chat.NewService(st, dispatcher, authz, &logger)

	attachStore, err := attach.NewDiskStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		t.Fatalf("failed to create attachment store: %v", err)
	}

	server := NewServer(Deps{
		Auth:     authService,
		Chat:     chatService,
		Friends:  friendsService,
		Attach:   attachStore,
		Registry: registry,
	}, cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		store:    st,
		auth:     authService,
		registry: registry,
		cfg:      cfg,
	}
}

// registerTestUser creates a user and returns its token and id.
func registerTestUser(t *testing.T, env *testEnv, username string) (string, int64) {
	t.Helper()

	ctx := context.Background()
	token, err := env.auth.Register(ctx, username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	user, err := env.store.GetUserByUsername(ctx, username)
	if err != nil {
		t.Fatalf("failed to look up %s: %v", username, err)
	}
	return token, user.ID
}

// doJSON performs an authenticated JSON request against the test server.
// The response body stays readable via decodeBody.
func doJSON(t *testing.T, env *testEnv, method, path, token string, body any) *stdhttp.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := stdhttp.NewRequest(method, env.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *stdhttp.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
