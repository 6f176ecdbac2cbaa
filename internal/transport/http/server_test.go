package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexustrade/lobengine/internal/ingress"
	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/pkg/lob"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()
	manager := matching.NewManager(matching.BaseHandler{}, logger)
	if code := manager.AddSymbol(lob.Symbol{ID: 1, Name: "BTC/USD"}); !code.OK() {
		t.Fatalf("add symbol: %v", code)
	}
	if code := manager.AddOrderBook(1); !code.OK() {
		t.Fatalf("add order book: %v", code)
	}
	manager.EnableMatching()

	gateway, err := ingress.New(2, 1000, 100, logger)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(gateway.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return New(manager, gateway, []byte("test-secret"), hash, 1000, nil, logger)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "wrong"})
	req := httptest.NewRequest("POST", "/v1/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginIssuesTokenUsableOnAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "secret"})
	req := httptest.NewRequest("POST", "/v1/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal token response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}

	enableReq := httptest.NewRequest("POST", "/v1/admin/matching/enable", nil)
	enableReq.Header.Set("Authorization", "Bearer "+resp.Token)
	enableRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(enableRec, enableReq)
	if enableRec.Code != 204 {
		t.Fatalf("expected 204, got %d", enableRec.Code)
	}
}

func TestAdminRouteRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("POST", "/v1/admin/matching/enable", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAddOrderAcceptedThroughGateway(t *testing.T) {
	s := newTestServer(t)
	payload := addOrderRequest{
		ID:          1,
		SymbolID:    1,
		Side:        "buy",
		Kind:        "limit",
		Price:       100,
		Quantity:    10,
		TimeInForce: "GTC",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != 202 {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}
