package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aplomb-care/aplomb/internal/agent"
	"github.com/aplomb-care/aplomb/internal/config"
	"github.com/aplomb-care/aplomb/internal/domain"
	"github.com/aplomb-care/aplomb/internal/identity"
	"github.com/aplomb-care/aplomb/internal/safety"
	"github.com/aplomb-care/aplomb/internal/session"
	"github.com/aplomb-care/aplomb/internal/turn"
)

type staticGenerator struct {
	reply string
}

func (s *staticGenerator) Generate(context.Context, string, []domain.ChatTurn) (*agent.Result, error) {
	return &agent.Result{Text: s.reply, Model: "gpt-4o", InputTokens: 10, OutputTokens: 5}, nil
}

func (s *staticGenerator) Close() {}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8080",
		DBPath:            "unused",
		SessionTTL:        time.Hour,
		AgentTimeout:      time.Second,
		MonitorCleanTurns: 1,
		RateLimit:         config.RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute},
	}
}

func newTestServer(t *testing.T, gen agent.Generator, cfg *config.Config) *httptest.Server {
	t.Helper()
	store := session.NewMemoryStore()
	coordinator := turn.NewCoordinator(store, safety.CrisisGate(1), safety.MedicalGate(1), gen, nil)
	h := NewHandler(coordinator, store, cfg)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postTurn(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/turn", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.SessionHeaderName, "test-session")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, decoded
}

func TestHandleTurnSuccess(t *testing.T) {
	srv := newTestServer(t, &staticGenerator{reply: "Bonjour, je vous ecoute."}, testConfig())

	resp, body := postTurn(t, srv, `{"utterance":"bonjour"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var reply string
	if err := json.Unmarshal(body["reply"], &reply); err != nil {
		t.Fatal(err)
	}
	if reply != "Bonjour, je vous ecoute." {
		t.Errorf("Expected agent reply, got %q", reply)
	}
	var safetySignal string
	if err := json.Unmarshal(body["safety"], &safetySignal); err != nil {
		t.Fatal(err)
	}
	if safetySignal != "none" {
		t.Errorf("Expected safety none, got %q", safetySignal)
	}
}

func TestHandleTurnSafetyInterception(t *testing.T) {
	srv := newTestServer(t, &staticGenerator{reply: "should not appear"}, testConfig())

	resp, body := postTurn(t, srv, `{"utterance":"j'ai des idees noires","clientMessageId":"m1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var safetySignal string
	if err := json.Unmarshal(body["safety"], &safetySignal); err != nil {
		t.Fatal(err)
	}
	if safetySignal != "ask" {
		t.Errorf("Expected safety ask, got %q", safetySignal)
	}
	var reply string
	_ = json.Unmarshal(body["reply"], &reply)
	if reply == "should not appear" {
		t.Error("Agent reply leaked through a safety interception")
	}
}

func TestHandleTurnInvalidBody(t *testing.T) {
	srv := newTestServer(t, &staticGenerator{reply: "ok"}, testConfig())

	resp, _ := postTurn(t, srv, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}

	resp, _ = postTurn(t, srv, `{"utterance":"  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank utterance, got %d", resp.StatusCode)
	}
}

func TestHandleTurnAgentUnavailable(t *testing.T) {
	srv := newTestServer(t, nil, testConfig())

	resp, _ := postTurn(t, srv, `{"utterance":"bonjour"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a dialogue agent, got %d", resp.StatusCode)
	}
}

// Safety gates answer even when the dialogue agent is down.
func TestHandleTurnSafetyWorksWithoutAgent(t *testing.T) {
	srv := newTestServer(t, nil, testConfig())

	resp, body := postTurn(t, srv, `{"utterance":"je veux me suicider"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for gate interception, got %d", resp.StatusCode)
	}
	var safetySignal string
	if err := json.Unmarshal(body["safety"], &safetySignal); err != nil {
		t.Fatal(err)
	}
	if safetySignal != "ask" {
		t.Errorf("Expected safety ask, got %q", safetySignal)
	}
}

func TestHandleTurnRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerWindow = 2
	srv := newTestServer(t, &staticGenerator{reply: "ok"}, cfg)

	// The limiter keys on the anon cookie, so requests must share a jar.
	jar := newCookieClient(t, srv)
	for i := 0; i < 2; i++ {
		resp := postWithClient(t, jar, srv, `{"utterance":"bonjour"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 on request %d, got %d", i+1, resp.StatusCode)
		}
	}
	resp := postWithClient(t, jar, srv, `{"utterance":"bonjour"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", resp.StatusCode)
	}
}

func TestHandleGetSession(t *testing.T) {
	srv := newTestServer(t, &staticGenerator{reply: "ok"}, testConfig())

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/session", nil)
	req.Header.Set(identity.SessionHeaderName, "introspect-me")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var view struct {
		Key    string `json:"key"`
		Exists bool   `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Key != "introspect-me" || view.Exists {
		t.Errorf("Expected empty session view, got %+v", view)
	}

	// A turn creates the session; introspection then reflects it.
	postReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/turn", strings.NewReader(`{"utterance":"bonjour"}`))
	postReq.Header.Set(identity.SessionHeaderName, "introspect-me")
	postResp, err := srv.Client().Do(postReq)
	if err != nil {
		t.Fatal(err)
	}
	_ = postResp.Body.Close()

	resp2, err := srv.Client().Do(req.Clone(req.Context()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp2.Body.Close() }()
	if err := json.NewDecoder(resp2.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if !view.Exists {
		t.Error("Expected session to exist after a turn")
	}
}

func TestHandleHealthz(t *testing.T) {
	srv := newTestServer(t, nil, testConfig())

	resp, err := srv.Client().Get(srv.URL + "/api/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestJSONHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"hello": "world"})
	if rec.Code != http.StatusCreated {
		t.Errorf("Expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	rec = httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "nope")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "nope" {
		t.Errorf("Expected error message, got %+v", body)
	}
}

func newCookieClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	client := srv.Client()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client.Jar = jar
	return client
}

func postWithClient(t *testing.T, client *http.Client, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/turn", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
