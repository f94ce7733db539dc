package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/fixture"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
)

// envelope mirrors the {code, data} wrapper of API responses
type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type loginData struct {
	Success      bool   `json:"success"`
	Token        string `json:"token"`
	ErrorMessage string `json:"errorMessage"`
}

func testConfig(t *testing.T, extra ...string) *config.ServerEnvironment {
	t.Helper()

	environ := append([]string{
		"ENVIRONMENT=test",
		"HOST=127.0.0.1",
		"PORT=18080",
		"DB_TYPE=sqlite",
		"DB_CONNECTION_STRING=" + filepath.Join(t.TempDir(), "server.db"),
		"JWT_SECRET=0123456789abcdef0123456789abcdef",
		"CHAT_MODEL=test-model",
		"CHAT_API_KEY=test-key",
		"ENDPOINT=https://api.example.test/v1",
		"SEED_TEST_DATA=true",
		"SUPPRESS_LOGGING=true",
		"RATE_LIMIT_RPS=0",
		"BCRYPT_COST=" + strconv.Itoa(bcrypt.MinCost),
	}, extra...)

	cfg, err := config.LoadServerConfig(environ)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, extra ...string) *httptest.Server {
	t.Helper()

	cfg := testConfig(t, extra...)
	db, err := OpenDatabase(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	srv := NewServer(db, cfg, logger.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.DatabaseShutdown()
	})
	return ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, envelope) {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response from %s: %v", url, err)
	}
	return resp, env
}

func getJSON(t *testing.T, url, token string) (*http.Response, envelope) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response from %s: %v", url, err)
	}
	return resp, env
}

func login(t *testing.T, baseURL, username, password string) loginData {
	t.Helper()

	resp, env := postJSON(t, baseURL+"/api/Auth/Login", map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned status %d", resp.StatusCode)
	}
	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode login data: %v", err)
	}
	return data
}

func TestCommonEndpoints(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/", "application/json", `"service":"wiki-server"`},
		{"/health", "text/plain", "OK"},
		{"/ready", "application/json", `"status":"ready"`},
		{"/version", "application/json", `"service":"wiki-server"`},
		{"/openapi.json", "application/json", `"/api/Auth/Login"`},
		{"/scalar", "text/html", "/openapi.json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s failed: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("expected content type %s, got %s", tt.contentType, ct)
			}

			var buf bytes.Buffer
			if _, err := buf.ReadFrom(resp.Body); err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("expected body to contain %q, got %s", tt.contains, buf.String())
			}
		})
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name        string
		username    string
		password    string
		wantSuccess bool
	}{
		{"seeded admin", "admin", "admin", true},
		{"login by email", "testuser@wiki.test", "testpass", true},
		{"wrong password", "admin", "wrong", false},
		{"unknown user", "ghost", "admin", false},
		{"empty password", "admin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := login(t, ts.URL, tt.username, tt.password)
			if data.Success != tt.wantSuccess {
				t.Fatalf("expected success=%v, got %+v", tt.wantSuccess, data)
			}
			if tt.wantSuccess && data.Token == "" {
				t.Error("expected a token")
			}
			if !tt.wantSuccess && (data.Token != "" || data.ErrorMessage == "") {
				t.Errorf("expected no token and an error message, got %+v", data)
			}
		})
	}
}

func TestLoginMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/Auth/Login", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{"new user", map[string]string{"userName": "newuser", "email": "newuser@wiki.test", "password": "newpass"}, http.StatusOK},
		{"duplicate name", map[string]string{"userName": "admin", "email": "other@wiki.test", "password": "newpass"}, http.StatusConflict},
		{"duplicate email", map[string]string{"userName": "someone", "email": "admin@wiki.test", "password": "newpass"}, http.StatusConflict},
		{"invalid email", map[string]string{"userName": "bad", "email": "not-an-email", "password": "newpass"}, http.StatusBadRequest},
		{"short password", map[string]string{"userName": "short", "email": "short@wiki.test", "password": "x"}, http.StatusBadRequest},
		{"missing name", map[string]string{"email": "anon@wiki.test", "password": "newpass"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := postJSON(t, ts.URL+"/api/Auth/Register", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantCode, resp.StatusCode, env.Message)
			}
			if env.Code != tt.wantCode {
				t.Errorf("expected envelope code %d, got %d", tt.wantCode, env.Code)
			}
		})
	}

	// the registered user can log in
	if data := login(t, ts.URL, "newuser", "newpass"); !data.Success {
		t.Errorf("expected registered user to log in, got %+v", data)
	}
}

func TestProtectedEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts.URL, "admin", "admin").Token

	for _, path := range []string{"/api/Auth/CurrentUser", "/api/UserProfile/", "/api/Repository/RepositoryList"} {
		t.Run(path, func(t *testing.T) {
			resp, _ := getJSON(t, ts.URL+path, "")
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("expected 401 without a token, got %d", resp.StatusCode)
			}

			resp, env := getJSON(t, ts.URL+path, token)
			if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK {
				t.Errorf("expected 200 with a token, got %d (%s)", resp.StatusCode, env.Message)
			}
		})
	}

	_, env := getJSON(t, ts.URL+"/api/Auth/CurrentUser", token)
	var user struct {
		ID    string   `json:"id"`
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(env.Data, &user); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	if user.Name != "admin" || user.ID != fixture.UserID("admin") {
		t.Errorf("unexpected current user %+v", user)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "Admin" {
		t.Errorf("expected Admin role, got %v", user.Roles)
	}
}

func TestRepositoryList(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts.URL, "testuser", "testpass").Token

	f, err := fixture.Default()
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantItems int
	}{
		{"first page", "?page=1&pageSize=2", http.StatusOK, 2},
		{"last page", "?page=2&pageSize=2", http.StatusOK, len(f.Repositories) - 2},
		{"defaults", "", http.StatusOK, len(f.Repositories)},
		{"page zero", "?page=0", http.StatusBadRequest, 0},
		{"page size too large", "?pageSize=500", http.StatusBadRequest, 0},
		{"not a number", "?page=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := getJSON(t, ts.URL+"/api/Repository/RepositoryList"+tt.query, token)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, resp.StatusCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var list struct {
				Total int64             `json:"total"`
				Items []json.RawMessage `json:"items"`
			}
			if err := json.Unmarshal(env.Data, &list); err != nil {
				t.Fatalf("failed to decode list: %v", err)
			}
			if list.Total != int64(len(f.Repositories)) {
				t.Errorf("expected total %d, got %d", len(f.Repositories), list.Total)
			}
			if len(list.Items) != tt.wantItems {
				t.Errorf("expected %d items, got %d", tt.wantItems, len(list.Items))
			}
		})
	}
}

func TestRepositoryCatalogs(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts.URL, "admin", "admin").Token

	f, err := fixture.Default()
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}
	repoID := fixture.RepositoryID(f.Repositories[0])

	resp, env := getJSON(t, ts.URL+"/api/Repository/"+repoID+"/Catalogs", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var catalogs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(env.Data, &catalogs); err != nil {
		t.Fatalf("failed to decode catalogs: %v", err)
	}
	if len(catalogs) != 1 || catalogs[0].Name != "Getting Started" {
		t.Errorf("unexpected catalogs %+v", catalogs)
	}

	resp, _ = getJSON(t, ts.URL+"/api/Repository/unknown/Catalogs", token)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown repository, got %d", resp.StatusCode)
	}
}

func TestStartFailsWhenPortTaken(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	cfg := testConfig(t,
		"PORT="+strconv.Itoa(port),
		"LISTEN_RETRIES=2",
		"LISTEN_RETRY_DELAY=10ms",
	)
	db, err := OpenDatabase(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	srv := NewServer(db, cfg, logger.Discard())
	defer srv.DatabaseShutdown()

	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail on a port in use")
	}
}

func TestStartAndShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	cfg := testConfig(t, "PORT="+strconv.Itoa(port))
	db, err := OpenDatabase(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	srv := NewServer(db, cfg, logger.Discard())
	defer srv.DatabaseShutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	url := "http://" + cfg.Address() + "/health"
	var ok bool
	for range 50 {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			ok = resp.StatusCode == http.StatusOK
			if ok {
				break
			}
		}
		select {
		case err := <-done:
			t.Fatalf("server exited early: %v", err)
		default:
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !ok {
		t.Fatal("server did not become healthy")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}

func TestRateLimitSparesProbes(t *testing.T) {
	ts := newTestServer(t, "RATE_LIMIT_RPS=1", "RATE_LIMIT_BURST=2")

	for i := range 2 {
		if data := login(t, ts.URL, "admin", "admin"); !data.Success {
			t.Fatalf("login %d failed: %s", i+1, data.ErrorMessage)
		}
	}

	resp, env := postJSON(t, ts.URL+"/api/Auth/Login", map[string]string{"username": "admin", "password": "admin"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 once the burst is spent, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
	if env.Code != http.StatusTooManyRequests {
		t.Errorf("expected error code 429, got %d", env.Code)
	}

	// a throttled server must still look alive to the readiness prober
	for _, path := range []string{"/health", "/ready"} {
		for range 5 {
			resp, err := http.Get(ts.URL + path)
			if err != nil {
				t.Fatalf("GET %s failed: %v", path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET %s: expected status 200 while rate limited, got %d", path, resp.StatusCode)
			}
		}
	}
}

func TestRegisterBodyLimit(t *testing.T) {
	ts := newTestServer(t, "MAX_REQUEST_BODY_SIZE=256")

	resp, env := postJSON(t, ts.URL+"/api/Auth/Register", map[string]string{
		"userName": "bulky",
		"email":    "bulky@example.com",
		"password": strings.Repeat("p", 512),
	})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Max-Request-Size"); got != "256" {
		t.Errorf("expected X-Max-Request-Size 256, got %q", got)
	}
	if env.Message == "" {
		t.Error("expected an error message")
	}

	// a normal registration still fits
	resp, _ = postJSON(t, ts.URL+"/api/Auth/Register", map[string]string{
		"userName": "slim",
		"email":    "slim@example.com",
		"password": "s3cret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestAPIResponsesAreNotCached(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path        string
		wantNoStore bool
	}{
		{"/api/Auth/CurrentUser", true},
		{"/api/Repository/RepositoryList", true},
		{"/health", false},
		{"/scalar", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s failed: %v", tt.path, err)
			}
			resp.Body.Close()

			if got := resp.Header.Get("Cache-Control") == "no-store"; got != tt.wantNoStore {
				t.Errorf("Cache-Control no-store = %v, want %v", got, tt.wantNoStore)
			}
			if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
				t.Error("X-Content-Type-Options not set")
			}
		})
	}
}
