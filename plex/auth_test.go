package plex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testClient(plexTV string) *Client {
	client := NewClient(Options{
		Token:            "tok-abc",
		ClientIdentifier: "plexbeat-test",
		Product:          "plexbeat",
		Version:          "1.0.0",
	})
	client.plexTV = plexTV
	return client
}

func TestRequestPIN(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/pins" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 987654, "code": "ABCD", "authToken": "", "clientIdentifier": "plexbeat-test"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	pin, err := client.RequestPIN(context.Background())
	if err != nil {
		t.Fatalf("RequestPIN() error = %v", err)
	}
	if pin.ID != 987654 || pin.Code != "ABCD" {
		t.Errorf("RequestPIN() = %+v; want id 987654 code ABCD", pin)
	}

	// Every plex.tv call must identify the client and ask for JSON.
	if got := gotHeaders.Get("X-Plex-Client-Identifier"); got != "plexbeat-test" {
		t.Errorf("X-Plex-Client-Identifier = %q; want plexbeat-test", got)
	}
	if got := gotHeaders.Get("X-Plex-Product"); got != "plexbeat" {
		t.Errorf("X-Plex-Product = %q; want plexbeat", got)
	}
	if got := gotHeaders.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q; want application/json", got)
	}
}

func TestCheckPINPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/pins/42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "code": "WXYZ", "authToken": ""}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	pin, err := client.CheckPIN(context.Background(), 42)
	if !errors.Is(err, ErrPINPending) {
		t.Fatalf("CheckPIN() error = %v; want ErrPINPending", err)
	}
	if pin == nil || pin.Code != "WXYZ" {
		t.Errorf("CheckPIN() pin = %+v; want code WXYZ alongside pending error", pin)
	}
}

func TestCheckPINAuthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "code": "WXYZ", "authToken": "granted-token"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	pin, err := client.CheckPIN(context.Background(), 42)
	if err != nil {
		t.Fatalf("CheckPIN() error = %v", err)
	}
	if pin.AuthToken != "granted-token" {
		t.Errorf("AuthToken = %q; want granted-token", pin.AuthToken)
	}
}

func TestCheckPINExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL)
	if _, err := client.CheckPIN(context.Background(), 42); !errors.Is(err, ErrPINExpired) {
		t.Fatalf("CheckPIN() error = %v; want ErrPINExpired", err)
	}
}

func TestBuildAuthURL(t *testing.T) {
	client := testClient(plexTVBaseURL)
	got := client.BuildAuthURL("ABCD")

	if !strings.HasPrefix(got, "https://app.plex.tv/auth#?") {
		t.Fatalf("BuildAuthURL() = %q; want app.plex.tv auth prefix", got)
	}
	parsed, err := url.Parse(strings.Replace(got, "#?", "?", 1))
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	query := parsed.Query()
	if query.Get("clientID") != "plexbeat-test" {
		t.Errorf("clientID = %q; want plexbeat-test", query.Get("clientID"))
	}
	if query.Get("code") != "ABCD" {
		t.Errorf("code = %q; want ABCD", query.Get("code"))
	}
	if query.Get("context[device][product]") != "plexbeat" {
		t.Errorf("context[device][product] = %q; want plexbeat", query.Get("context[device][product]"))
	}
}

func TestSetTokenSwapsHeader(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Plex-Token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1, "code": "AAAA", "authToken": "t"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	client.SetToken("fresh-token")
	if _, err := client.CheckPIN(context.Background(), 1); err != nil {
		t.Fatalf("CheckPIN() error = %v", err)
	}
	if gotToken != "fresh-token" {
		t.Errorf("X-Plex-Token = %q; want fresh-token", gotToken)
	}
}

func TestAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/user" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 7, "uuid": "u-7", "username": "listener", "email": "l@example.com"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	account, err := client.Account(context.Background())
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if account.ID != 7 || account.Username != "listener" {
		t.Errorf("Account() = %+v", account)
	}
}

func TestAccountRequiresToken(t *testing.T) {
	client := testClient(plexTVBaseURL)
	client.SetToken("")
	if _, err := client.Account(context.Background()); err == nil {
		t.Fatal("Account() without a token should fail before any request")
	}
}

func TestStripToken(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			"token_last",
			"http://s/media?X-Plex-Token=secret",
			"http://s/media?X-Plex-Token=REDACTED",
		},
		{
			"token_middle",
			"http://s/media?X-Plex-Token=secret&other=1",
			"http://s/media?X-Plex-Token=REDACTED&other=1",
		},
		{
			"no_token",
			"http://s/media?other=1",
			"http://s/media?other=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripToken(tt.url); got != tt.want {
				t.Errorf("stripToken() = %q; want %q", got, tt.want)
			}
		})
	}
}
