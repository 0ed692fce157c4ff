package openapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/router-for-me/pkcelogin/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/oauth2"
)

func TestFetchUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi/port/v1/users/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-abc" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_, _ = w.Write([]byte(`{"UserId":"12345","Name":"Jane Trader"}`))
	}))
	defer srv.Close()

	client := NewClient(config.AppConfig{OpenAPIBaseURL: srv.URL + "/openapi"}, srv.Client())
	info, err := client.FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: "access-abc", TokenType: "Bearer"})
	if err != nil {
		t.Fatalf("FetchUserInfo error: %v", err)
	}
	if info.UserID != "12345" || info.Name != "Jane Trader" {
		t.Fatalf("unexpected user info %+v", info)
	}
	if len(info.Raw) == 0 {
		t.Fatalf("expected raw payload")
	}
}

func TestFetchUserInfoMasksBearerInDebugLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"UserId":"12345"}`))
	}))
	defer srv.Close()

	previous := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(previous)
	hook := test.NewGlobal()
	defer log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	client := NewClient(config.AppConfig{OpenAPIBaseURL: srv.URL}, srv.Client())
	if _, err := client.FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: "access-secret-0123456789"}); err != nil {
		t.Fatalf("FetchUserInfo error: %v", err)
	}

	found := false
	for _, entry := range hook.AllEntries() {
		value, ok := entry.Data["authorization"].(string)
		if !ok {
			continue
		}
		found = true
		if strings.Contains(value, "access-secret-0123456789") || !strings.HasPrefix(value, "Bearer ") {
			t.Fatalf("expected masked bearer credential, got %q", value)
		}
	}
	if !found {
		t.Fatalf("expected a debug entry carrying the masked authorization header")
	}
}

func TestFetchUserInfoUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ErrorCode":"InvalidToken"}`))
	}))
	defer srv.Close()

	client := NewClient(config.AppConfig{OpenAPIBaseURL: srv.URL}, srv.Client())
	_, err := client.FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: "access-abc"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
}

func TestFetchUserInfoRequiresToken(t *testing.T) {
	client := NewClient(config.AppConfig{OpenAPIBaseURL: "https://api.example.com"}, nil)
	if _, err := client.FetchUserInfo(context.Background(), nil); err == nil {
		t.Fatalf("expected error without token")
	}
}

func TestResolveJoinsBaseAndPath(t *testing.T) {
	client := NewClient(config.AppConfig{OpenAPIBaseURL: "https://api.example.com/sim/openapi/"}, nil)
	got, err := client.resolve("/port/v1/users/me")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if got != "https://api.example.com/sim/openapi/port/v1/users/me" {
		t.Fatalf("unexpected url %q", got)
	}
}
