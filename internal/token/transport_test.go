package token

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/careerboard/internal/model"
)

func TestExtract_Precedence(t *testing.T) {
	tr := NewTransport(TransportConfig{CookieName: "token"})

	tests := []struct {
		name   string
		header string
		cookie string
		want   string
		wantOK bool
	}{
		{"header only", "Bearer header-token", "", "header-token", true},
		{"cookie only", "", "cookie-token", "cookie-token", true},
		{"header wins over cookie", "Bearer header-token", "cookie-token", "header-token", true},
		{"lowercase scheme", "bearer header-token", "", "header-token", true},
		{"malformed header falls back to cookie", "Bearer", "cookie-token", "cookie-token", true},
		{"other scheme falls back to cookie", "Basic dXNlcjpwYXNz", "cookie-token", "cookie-token", true},
		{"extra fields fall back to cookie", "Bearer a b", "cookie-token", "cookie-token", true},
		{"nothing", "", "", "", false},
		{"malformed header and no cookie", "Token abc", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}

			got, ok := tr.Extract(r)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Extract() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAttach_SetsCookieAndBody(t *testing.T) {
	tr := NewTransport(TransportConfig{CookieName: "token", Secure: true, Domain: "jobs.example.com"})
	tok := &model.SessionToken{
		Raw:       "raw-token",
		SubjectID: "cand-1",
		Kind:      model.KindCandidate,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	p := &model.Principal{ID: "cand-1", Email: "alice@example.com", Kind: model.KindCandidate, DisplayName: "Alice"}

	rec := httptest.NewRecorder()
	tr.Attach(rec, http.StatusCreated, tok, p)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "token" || c.Value != "raw-token" {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", c.SameSite)
	}
	if !c.Secure {
		t.Error("cookie should be Secure when configured")
	}
	if c.MaxAge < 7*24*3600-5 || c.MaxAge > 7*24*3600 {
		t.Errorf("MaxAge = %d, want about 7 days", c.MaxAge)
	}

	var body SessionBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Token != "raw-token" {
		t.Errorf("body.token = %q, want raw-token", body.Token)
	}
	if body.Principal == nil || body.Principal.ID != "cand-1" || body.Principal.Kind != model.KindCandidate {
		t.Errorf("body.principal = %+v", body.Principal)
	}
}

func TestClear_ExpiresCookie(t *testing.T) {
	tr := NewTransport(TransportConfig{})
	rec := httptest.NewRecorder()
	tr.Clear(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Name != "token" {
		t.Errorf("cookie name = %q, want default token", cookies[0].Name)
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative", cookies[0].MaxAge)
	}
	if cookies[0].Value != "" {
		t.Errorf("Value = %q, want empty", cookies[0].Value)
	}
}
