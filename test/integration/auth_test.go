//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/information-sharing-networks/wiki-harness/internal/harness"
)

func TestLogin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		username    string
		password    string
		wantSuccess bool
		wantName    string
	}{
		{name: "seeded admin", username: "admin", password: "admin", wantSuccess: true, wantName: "admin"},
		{name: "seeded user", username: "testuser", password: "testpass", wantSuccess: true, wantName: "testuser"},
		{name: "email as user name", username: "admin@wiki.test", password: "admin", wantSuccess: true, wantName: "admin"},
		{name: "wrong password", username: "admin", password: "wrong"},
		{name: "unknown user", username: "nobody", password: "admin"},
		{name: "empty password", username: "admin", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, status, err := anonClient.Login(ctx, tt.username, tt.password)
			if err != nil {
				t.Fatalf("login request failed: %v", err)
			}
			if status != http.StatusOK {
				t.Fatalf("expected status 200, got %d", status)
			}
			if result.Success != tt.wantSuccess {
				t.Fatalf("expected success=%v, got %v (%s)", tt.wantSuccess, result.Success, result.ErrorMessage)
			}

			if !tt.wantSuccess {
				if result.Token != "" {
					t.Error("failed login returned a token")
				}
				if result.ErrorMessage == "" {
					t.Error("failed login returned no error message")
				}
				return
			}

			if result.Token == "" || result.RefreshToken == "" {
				t.Error("expected token and refresh token")
			}
			if result.User == nil || result.User.Name != tt.wantName {
				t.Errorf("unexpected user %+v", result.User)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	resetAfter(t)

	name := uniqueName("newuser")

	result, status, err := anonClient.Register(ctx, name, name+"@example.com", "s3cret")
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if !result.Success || result.Token == "" {
		t.Fatalf("expected a token for the new user, got %+v", result)
	}
	if len(result.User.Roles) != 1 || result.User.Roles[0] != "User" {
		t.Errorf("expected the User role, got %v", result.User.Roles)
	}

	login, _, err := anonClient.Login(ctx, name, "s3cret")
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	if !login.Success {
		t.Errorf("new user cannot log in: %s", login.ErrorMessage)
	}

	// an existing user is reported as a conflict, which the harness treats as "already exists"
	_, status, err = anonClient.Register(ctx, name, name+"@example.com", "s3cret")
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	if status != http.StatusConflict {
		t.Errorf("expected status 409, got %d", status)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{name: "missing user name", username: "", email: "a@example.com", password: "s3cret"},
		{name: "invalid email", username: uniqueName("bad-email"), email: "not-an-email", password: "s3cret"},
		{name: "short password", username: uniqueName("short-pw"), email: "b@example.com", password: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status, err := anonClient.Register(ctx, tt.username, tt.email, tt.password)
			if err != nil {
				t.Fatalf("register request failed: %v", err)
			}
			if status != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", status)
			}
		})
	}
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()

	resp, err := anonClient.Get(ctx, harness.CurrentUserPath)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401 without a token, got %d", resp.StatusCode)
	}

	bogus := anonClient.WithBearer("not-a-token")
	resp, err = bogus.Get(ctx, harness.CurrentUserPath)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401 for an invalid token, got %d", resp.StatusCode)
	}

	var user harness.UserInfo
	if status := getJSON(t, adminClient(t), harness.CurrentUserPath, &user); status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if user.Name != harnessCfg.Username {
		t.Errorf("expected user %s, got %s", harnessCfg.Username, user.Name)
	}
}

func TestTokenIsCachedPerIdentity(t *testing.T) {
	ctx := context.Background()

	first := adminClient(t)
	second := adminClient(t)
	if first == second {
		t.Fatal("expected a new client per call")
	}

	creds := testHarness.Credentials()
	cred, ok := creds.Cached(harnessCfg.Username)
	if !ok {
		t.Fatal("expected a cached credential")
	}

	token, err := creds.GetOrCreateToken(ctx, harnessCfg.Username, harnessCfg.Password)
	if err != nil {
		t.Fatalf("GetOrCreateToken failed: %v", err)
	}
	if token != cred.Token {
		t.Error("expected the cached token to be reused")
	}
}
