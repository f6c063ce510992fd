package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/giygas/ems-interactions-api/config"
	"github.com/giygas/ems-interactions-api/data"
	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/sessions"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Address:        "127.0.0.1",
		Env:            config.EnvTest,
		LogLevel:       "error",
		MaxRequestBody: 65536,
		MaxHeaderSize:  1048576,
		RulesRefreshAt: "06:00;18:00",
		SessionTTL:     time.Hour,
		MaxSelection:   20,
		AllowedOrigins: []string{"*"},
	}
}

func loadedContainer() *data.DataContainer {
	dc := data.NewDataContainer()
	dc.UpdateData([]entities.InteractionRule{
		{DrugA: "Fentanyl", DrugB: "Midazolam", Severity: entities.SeverityMajor, Description: "Respiratory depression"},
		{DrugA: "Nitroglycerin", DrugB: "Sildenafil", Severity: entities.SeverityMajor, Description: "Severe hypotension"},
	}, []entities.Medication{
		{ID: "fentanyl", Name: "Fentanyl", Category: "opioid"},
		{ID: "midazolam", Name: "Midazolam", Category: "benzodiazepine"},
	}, nil, &interfaces.DataQualityReport{})
	dc.SetServerStartTime(time.Now())
	return dc
}

func newTestServer(cfg *config.Config) *Server {
	return NewServer(cfg, loadedContainer(), sessions.NewMemoryStore(time.Hour), nil, func() error { return nil })
}

func serve(s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:40000"
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestNewServer(t *testing.T) {
	cfg := testConfig()
	dc := loadedContainer()

	server := NewServer(cfg, dc, sessions.NewMemoryStore(time.Hour), nil, func() error { return nil })
	defer server.stopCleanup()

	if server.server.Addr != "127.0.0.1:0" {
		t.Errorf("Expected server address 127.0.0.1:0, got %s", server.server.Addr)
	}
	if server.dataContainer != dc {
		t.Error("Data container should be set correctly")
	}
	if server.config != cfg {
		t.Error("Config should be set correctly")
	}
	if server.router == nil || server.httpHandler == nil || server.healthChecker == nil || server.rateLimiter == nil {
		t.Error("Server dependencies should not be nil")
	}
	if server.server.ReadTimeout != 15*time.Second || server.server.IdleTimeout != 60*time.Second {
		t.Error("Unexpected server timeouts")
	}
}

func TestSetupRoutes(t *testing.T) {
	server := newTestServer(testConfig())
	defer server.stopCleanup()

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{"GET", "/health", "", http.StatusOK},
		{"GET", "/v1/health", "", http.StatusOK},
		{"GET", "/metrics", "", http.StatusOK},
		{"GET", "/v1/medications", "", http.StatusOK},
		{"GET", "/v1/medications?search=fent", "", http.StatusOK},
		{"GET", "/v1/medications/fentanyl", "", http.StatusOK},
		{"GET", "/v1/medications/unknown", "", http.StatusNotFound},
		{"GET", "/v1/interactions", "", http.StatusOK},
		{"POST", "/v1/interactions/check", `{"medications":["Fentanyl","Midazolam"]}`, http.StatusOK},
		{"POST", "/v1/sessions", "", http.StatusCreated},
		{"GET", "/v1/sessions/unknown", "", http.StatusNotFound},
		{"GET", "/unknown", "", http.StatusNotFound},
		{"POST", "/v1/admin/refresh", "", http.StatusNotFound}, // no admin secret configured
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := serve(server, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSessionFlowThroughRouter(t *testing.T) {
	server := newTestServer(testConfig())
	defer server.stopCleanup()

	rr := serve(server, "POST", "/v1/sessions", "")
	var session struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &session); err != nil || session.ID == "" {
		t.Fatalf("Failed to create session: %v %s", err, rr.Body.String())
	}

	base := "/v1/sessions/" + session.ID
	serve(server, "POST", base+"/medications", `{"name":"Nitroglycerin 0.4mg"}`)
	serve(server, "POST", base+"/medications", `{"name":"Sildenafil"}`)

	rr = serve(server, "GET", base+"/interactions", "")
	var report struct {
		Count        int `json:"count"`
		Interactions []struct {
			MatchedBy string `json:"matched_by"`
		} `json:"interactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.Count != 1 || report.Interactions[0].MatchedBy != "fuzzy" {
		t.Errorf("Expected one fuzzy interaction, got %+v", report)
	}
}

func TestAdminRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.AdminJWTSecret = testSecret

	refreshed := 0
	server := NewServer(cfg, loadedContainer(), sessions.NewMemoryStore(time.Hour), nil, func() error {
		refreshed++
		return nil
	})
	defer server.stopCleanup()

	if rr := serve(server, "POST", "/v1/admin/refresh", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", rr.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if rr := serve(server, "POST", "/v1/admin/refresh", "", "Authorization", "Bearer "+token); rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if refreshed != 1 {
		t.Errorf("Expected one refresh, got %d", refreshed)
	}

	// rule routes need a rule store
	body := `{"drug_a":"Ketamine","drug_b":"Midazolam","severity":"minor","description":"x"}`
	if rr := serve(server, "POST", "/v1/admin/interactions", body, "Authorization", "Bearer "+token); rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected rule routes to be absent, got %d", rr.Code)
	}
}

// stubRuleStore accepts every rule
type stubRuleStore struct {
	created int
}

func (s *stubRuleStore) ListActive(ctx context.Context) ([]entities.InteractionRule, error) {
	return nil, nil
}

func (s *stubRuleStore) Create(ctx context.Context, rule *entities.InteractionRule) error {
	s.created++
	rule.ID = fmt.Sprintf("rule-%d", s.created)
	return nil
}

func (s *stubRuleStore) Delete(ctx context.Context, id string) error { return nil }
func (s *stubRuleStore) Count(ctx context.Context) (int, error)      { return s.created, nil }
func (s *stubRuleStore) Ping(ctx context.Context) error              { return nil }

func TestAdminRuleRoutesFollowRulesSource(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	body := `{"drug_a":"Ketamine","drug_b":"Haloperidol","severity":"minor","description":"x"}`

	tests := []struct {
		source  string
		want    int
		created int
	}{
		// rule edits need the store to be the live source
		{config.SourceEmbedded, http.StatusNotFound, 0},
		{"/etc/ems/interactions.yaml", http.StatusNotFound, 0},
		{config.SourcePostgres, http.StatusCreated, 1},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			cfg := testConfig()
			cfg.AdminJWTSecret = testSecret
			cfg.RulesSource = tt.source

			store := &stubRuleStore{}
			server := NewServer(cfg, loadedContainer(), sessions.NewMemoryStore(time.Hour), store, func() error { return nil })
			defer server.stopCleanup()

			rr := serve(server, "POST", "/v1/admin/interactions", body, "Authorization", "Bearer "+token)
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			if store.created != tt.created {
				t.Errorf("Expected %d stored rules, got %d", tt.created, store.created)
			}
		})
	}
}

func TestMiddlewareStack(t *testing.T) {
	server := newTestServer(testConfig())
	defer server.stopCleanup()

	rr := serve(server, "GET", "/v1/interactions", "", "Origin", "https://ems.example.org")

	if rr.Header().Get("X-RateLimit-Limit") != "1000" {
		t.Error("Expected rate limit headers")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected CORS headers")
	}

	rr = serve(server, "POST", "/v1/interactions/check", strings.Repeat("a", 70000))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 for an oversized body, got %d", rr.Code)
	}
}

func TestCompressedResponses(t *testing.T) {
	server := newTestServer(testConfig())
	defer server.stopCleanup()

	rr := serve(server, "GET", "/v1/interactions", "", "Accept-Encoding", "gzip")
	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Expected gzip response, got %q", rr.Header().Get("Content-Encoding"))
	}

	zr, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("Invalid gzip body: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to read gzip body: %v", err)
	}

	var rules []entities.InteractionRule
	if err := json.Unmarshal(raw, &rules); err != nil || len(rules) != 2 {
		t.Errorf("Expected 2 rules, got %d (%v)", len(rules), err)
	}
}

func TestBehindProxyBlocksDirectAccess(t *testing.T) {
	cfg := testConfig()
	cfg.BehindProxy = true
	server := newTestServer(cfg)
	defer server.stopCleanup()

	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.RemoteAddr = "198.51.100.4:5000"
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for direct access, got %d", rr.Code)
	}

	req = httptest.NewRequest("GET", "/v1/health", nil)
	req.RemoteAddr = "198.51.100.4:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr = httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 through the proxy, got %d", rr.Code)
	}
}

func TestServerLifecycle(t *testing.T) {
	server := newTestServer(testConfig())

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Server shutdown should not error: %v", err)
	}

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Expected http.ErrServerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Server should have shutdown within 1 second")
	}
}

func BenchmarkCheckThroughRouter(b *testing.B) {
	server := newTestServer(testConfig())
	defer server.stopCleanup()
	body := `{"medications":["Fentanyl","Midazolam","Nitroglycerin","Sildenafil"]}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("POST", "/v1/interactions/check", strings.NewReader(body))
		// fresh client per iteration keeps the rate limiter out of the measurement
		req.RemoteAddr = fmt.Sprintf("10.%d.%d.%d:1234", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
		server.router.ServeHTTP(httptest.NewRecorder(), req)
	}
}
