package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/astroline/internal/auth"
	"github.com/hitoshi/astroline/internal/model"
)

type mockAuthService struct {
	loginFn func(ctx context.Context, email, password string) (*auth.TokenResponse, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.TokenResponse, error) {
	return m.loginFn(ctx, email, password)
}

func postToken(h *AuthHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.IssueToken(w, req)
	return w
}

func TestAuthHandler_IssueToken_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(_ context.Context, email, password string) (*auth.TokenResponse, error) {
			if email != "buyer@example.com" || password != "pw" {
				t.Errorf("Login(%q, %q)", email, password)
			}
			return &auth.TokenResponse{AccessToken: "tok", TokenType: "bearer", ExpiresIn: 3600, UserID: "user-1"}, nil
		},
	}

	w := postToken(NewAuthHandler(svc), `{"email":"buyer@example.com","password":"pw"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["access_token"] != "tok" || body["token_type"] != "bearer" || body["expires_in"] != float64(3600) || body["user_id"] != "user-1" {
		t.Errorf("body = %v", body)
	}
}

func TestAuthHandler_IssueToken_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest},
		{"invalid credentials", `{"email":"a@x.com","password":"bad"}`, model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"missing fields", `{"email":""}`, model.NewInvalidRequestError("email and password are required"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(context.Context, string, string) (*auth.TokenResponse, error) { return nil, tt.err },
			}

			w := postToken(NewAuthHandler(svc), tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
