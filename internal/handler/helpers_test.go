package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dal01/financas/internal/domain"

	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"parse", &domain.ErrParse{Missing: []string{"vencimento"}}, http.StatusUnprocessableEntity},
		{"not found", &domain.ErrNotFound{Resource: "statement", ID: "x"}, http.StatusNotFound},
		{"validation", &domain.ErrValidation{Field: "id", Message: "required"}, http.StatusBadRequest},
		{"duplicate", &domain.ErrDuplicate{Key: "abc"}, http.StatusConflict},
		{"circuit open", &domain.ErrCircuitOpen{Service: "postgrest"}, http.StatusServiceUnavailable},
		{"unauthorized", &domain.ErrUnauthorized{}, http.StatusUnauthorized},
		{"external", &domain.ErrExternalService{Service: "postgrest", Err: fmt.Errorf("boom")}, http.StatusBadGateway},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, tt.err, zap.NewNop())
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestHandleServiceError_ParseCarriesDiagnostics(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &domain.ErrParse{
		Missing: []string{`vencimento ("Vencimento")`},
		Preview: "Fatura fechada em 10/05/2025",
	}
	handleServiceError(rec, err, zap.NewNop())

	var body errorResponse
	if derr := json.NewDecoder(rec.Body).Decode(&body); derr != nil {
		t.Fatalf("decoding body: %v", derr)
	}
	if len(body.Missing) != 1 {
		t.Errorf("missing = %v", body.Missing)
	}
	if body.Preview == "" {
		t.Error("expected preview lines")
	}
}

func TestJWTAuthMiddleware_RejectsMissingToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not run")
	})
	mw := JWTAuthMiddleware("secret", zap.NewNop())(next)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/statements/import", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthMiddleware_RejectsGarbageToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not run")
	})
	mw := JWTAuthMiddleware("secret", zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodPost, "/v1/statements/import", nil)
	req.Header.Set("Authorization", "Bearer nao-e-um-jwt")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
