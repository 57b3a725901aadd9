package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pysugar/finance-nexus/internal/auth/oauth"
	"github.com/pysugar/finance-nexus/internal/db/models"
)

type fakeAccounts struct {
	acc models.Account
	err error
}

func (f *fakeAccounts) CurrentAccount() (models.Account, error) {
	return f.acc, f.err
}

type fakeRefresher struct {
	tok   oauth.Token
	err   error
	calls int32
}

func (f *fakeRefresher) Refresh(ctx context.Context) (oauth.Token, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.tok, f.err
}

func oauthAccount(accessToken string) models.Account {
	var acc models.Account
	acc.ID = 1
	acc.ServerAddress = "https://money.example.com"
	acc.SetAuth(models.OAuth{
		AccessToken:  accessToken,
		ClientID:     "c1",
		ClientSecret: "s1",
		RefreshToken: "r1",
	})
	return acc
}

func patAccount(accessToken string) models.Account {
	var acc models.Account
	acc.ID = 1
	acc.ServerAddress = "https://money.example.com"
	acc.SetAuth(models.PersonalAccessToken{AccessToken: accessToken})
	return acc
}

func newResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
	}
}

func TestAuthenticate_SkipsNon401(t *testing.T) {
	refresher := &fakeRefresher{tok: oauth.Token{AccessToken: "a2"}}
	transport := NewAuthTransport(nil, &fakeAccounts{acc: oauthAccount("a1")}, refresher)

	req := httptest.NewRequest(http.MethodGet, "https://money.example.com/api", nil)
	if retry := transport.authenticate(req, newResponse(http.StatusInternalServerError)); retry != nil {
		t.Fatalf("expected no retry for status 500")
	}
	if atomic.LoadInt32(&refresher.calls) != 0 {
		t.Fatalf("refresher invoked %d times, want 0", refresher.calls)
	}
}

func TestAuthenticate_SkipsPATAccounts(t *testing.T) {
	refresher := &fakeRefresher{tok: oauth.Token{AccessToken: "a2"}}
	transport := NewAuthTransport(nil, &fakeAccounts{acc: patAccount("pat-token")}, refresher)

	req := httptest.NewRequest(http.MethodGet, "https://money.example.com/api", nil)
	if retry := transport.authenticate(req, newResponse(http.StatusUnauthorized)); retry != nil {
		t.Fatalf("expected no retry for PAT account")
	}
	if atomic.LoadInt32(&refresher.calls) != 0 {
		t.Fatalf("refresher invoked %d times, want 0", refresher.calls)
	}
}

func TestAuthenticate_SkipsWhenNoCurrentAccount(t *testing.T) {
	refresher := &fakeRefresher{tok: oauth.Token{AccessToken: "a2"}}
	transport := NewAuthTransport(nil, &fakeAccounts{err: errors.New("no current account")}, refresher)

	req := httptest.NewRequest(http.MethodGet, "https://money.example.com/api", nil)
	if retry := transport.authenticate(req, newResponse(http.StatusUnauthorized)); retry != nil {
		t.Fatalf("expected no retry without a current account")
	}
}

func TestAuthenticate_RetriesWithRefreshedBearer(t *testing.T) {
	refresher := &fakeRefresher{tok: oauth.Token{AccessToken: "a2", RefreshToken: "r2"}}
	transport := NewAuthTransport(nil, &fakeAccounts{acc: oauthAccount("a1")}, refresher)

	req := httptest.NewRequest(http.MethodGet, "https://money.example.com/api", nil)
	req.Header.Set("Authorization", "Bearer a1")

	retry := transport.authenticate(req, newResponse(http.StatusUnauthorized))
	if retry == nil {
		t.Fatalf("expected a retry request")
	}
	if got := retry.Header.Get("Authorization"); got != "Bearer a2" {
		t.Fatalf("Authorization = %q, want %q", got, "Bearer a2")
	}
	if got := retry.Header.Values("Authorization"); len(got) != 1 {
		t.Fatalf("Authorization header values = %d, want 1", len(got))
	}
	if atomic.LoadInt32(&refresher.calls) != 1 {
		t.Fatalf("refresher invoked %d times, want 1", refresher.calls)
	}
}

func TestAuthenticate_GivesUpWhenRefreshFails(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("refresh failed")}
	transport := NewAuthTransport(nil, &fakeAccounts{acc: oauthAccount("a1")}, refresher)

	req := httptest.NewRequest(http.MethodGet, "https://money.example.com/api", nil)
	if retry := transport.authenticate(req, newResponse(http.StatusUnauthorized)); retry != nil {
		t.Fatalf("expected no retry when refresh fails")
	}
}

func TestRoundTrip_AttachesBearerAndAccept(t *testing.T) {
	var gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
	}))
	defer server.Close()

	client := &http.Client{
		Transport: NewAuthTransport(nil, &fakeAccounts{acc: patAccount("pat-token")}, &fakeRefresher{}),
	}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer pat-token" {
		t.Fatalf("Authorization = %q, want %q", gotAuth, "Bearer pat-token")
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q, want application/json", gotAccept)
	}
}

func TestRoundTrip_RefreshesOnceOn401(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") != "Bearer a2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	refresher := &fakeRefresher{tok: oauth.Token{AccessToken: "a2", RefreshToken: "r2"}}
	client := &http.Client{
		Transport: NewAuthTransport(nil, &fakeAccounts{acc: oauthAccount("a1")}, refresher),
	}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Fatalf("server requests = %d, want 2 (original + one retry)", requests)
	}
	if atomic.LoadInt32(&refresher.calls) != 1 {
		t.Fatalf("refresher invoked %d times, want 1", refresher.calls)
	}
}

func TestRoundTrip_RepostsBodyOnRetry(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer a2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	refresher := &fakeRefresher{tok: oauth.Token{AccessToken: "a2", RefreshToken: "r2"}}
	client := &http.Client{
		Transport: NewAuthTransport(nil, &fakeAccounts{acc: oauthAccount("a1")}, refresher),
	}

	resp, err := client.Post(server.URL, "application/json", strings.NewReader(`{"amount":42}`))
	if err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(bodies) != 2 {
		t.Fatalf("server requests = %d, want 2", len(bodies))
	}
	for i, b := range bodies {
		if b != `{"amount":42}` {
			t.Fatalf("request %d body = %q, want the original payload", i, b)
		}
	}
}

func TestRoundTrip_SkipsRetryWhenBodyNotReplayable(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{tok: oauth.Token{AccessToken: "a2", RefreshToken: "r2"}}
	client := &http.Client{
		Transport: NewAuthTransport(nil, &fakeAccounts{acc: oauthAccount("a1")}, refresher),
	}

	// Wrapping the reader hides its type, so the request gets no GetBody
	// and the consumed body cannot be rebuilt for a second attempt.
	body := io.Reader(struct{ io.Reader }{strings.NewReader(`{"amount":42}`)})
	req, err := http.NewRequest(http.MethodPost, server.URL, body)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want the original 401", resp.StatusCode)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Fatalf("server requests = %d, want 1 (no retry)", requests)
	}
	if atomic.LoadInt32(&refresher.calls) != 0 {
		t.Fatalf("refresher invoked %d times, want 0", refresher.calls)
	}
}

func TestRoundTrip_SurfacesOriginal401WhenRefreshFails(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := &fakeRefresher{err: errors.New("refresh failed")}
	client := &http.Client{
		Transport: NewAuthTransport(nil, &fakeAccounts{acc: oauthAccount("a1")}, refresher),
	}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Fatalf("server requests = %d, want 1 (no retry)", requests)
	}
}
