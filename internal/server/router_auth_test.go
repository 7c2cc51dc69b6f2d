package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.performJSON(t, http.MethodGet, "/healthz", "", nil)
	requireStatus(t, recorder, http.StatusOK)
	if data := envelopeData(t, recorder); data["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", data)
	}
}

func TestSessionExchangeIssuesDashboardToken(t *testing.T) {
	env := newTestEnvironment(t)

	request := httptest.NewRequest(http.MethodPost, "/auth/session", nil)
	request.AddCookie(env.sessionCookie(t, "google:alice", []string{"admin"}))
	recorder := httptest.NewRecorder()
	env.engine.ServeHTTP(recorder, request)

	requireStatus(t, recorder, http.StatusOK)
	data := envelopeData(t, recorder)
	if data["tokenType"] != "Bearer" {
		t.Fatalf("unexpected token type: %v", data["tokenType"])
	}
	token, ok := data["accessToken"].(string)
	if !ok || token == "" {
		t.Fatalf("expected access token in payload, got %v", data)
	}
	if expiresIn, ok := data["expiresIn"].(float64); !ok || expiresIn <= 0 {
		t.Fatalf("expected positive expiresIn, got %v", data["expiresIn"])
	}

	authed := env.performJSON(t, http.MethodGet, "/invite/main/responses", token, nil)
	requireStatus(t, authed, http.StatusOK)
}

func TestSessionExchangeRejectsMissingCookie(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.performJSON(t, http.MethodPost, "/auth/session", "", nil)
	envelope := requireStatus(t, recorder, http.StatusUnauthorized)
	if envelope["error"] != "unauthorized" {
		t.Fatalf("unexpected error code: %v", envelope["error"])
	}
}

func TestSessionExchangeRejectsTamperedCookie(t *testing.T) {
	env := newTestEnvironment(t)

	cookie := env.sessionCookie(t, "google:alice", []string{"admin"})
	cookie.Value += "tampered"
	request := httptest.NewRequest(http.MethodPost, "/auth/session", nil)
	request.AddCookie(cookie)
	recorder := httptest.NewRecorder()
	env.engine.ServeHTTP(recorder, request)

	requireStatus(t, recorder, http.StatusUnauthorized)
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.performJSON(t, http.MethodGet, "/invite/main/responses", "", nil)
	requireStatus(t, recorder, http.StatusUnauthorized)
}

func TestProtectedRoutesRejectMalformedToken(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.performJSON(t, http.MethodGet, "/invite/main/responses", "not-a-jwt", nil)
	requireStatus(t, recorder, http.StatusUnauthorized)
}

func TestProtectedRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.performJSON(t, http.MethodGet, "/invite/main/responses", env.guestToken(t), nil)
	envelope := requireStatus(t, recorder, http.StatusForbidden)
	if envelope["error"] != "forbidden" {
		t.Fatalf("unexpected error code: %v", envelope["error"])
	}
}
