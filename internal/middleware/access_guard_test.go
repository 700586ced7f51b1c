package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/token"
)

// --- モック定義 ---

type mockCandidateFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Candidate, error)
	calls      int
}

func (m *mockCandidateFinder) FindByID(ctx context.Context, id string) (*model.Candidate, error) {
	m.calls++
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	rejections []string
	limited    []string
	statuses   []int
}

func (m *recordingMetrics) RecordAuthAttempt(string, string) {}
func (m *recordingMetrics) RecordGuardRejection(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, reason)
}
func (m *recordingMetrics) RecordApplicationSubmission(string) {}
func (m *recordingMetrics) RecordHTTPStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, code)
}
func (m *recordingMetrics) RecordRequestLatency(time.Duration) {}
func (m *recordingMetrics) RecordRateLimited(scope string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limited = append(m.limited, scope)
}

type guardEnv struct {
	guard      *AccessGuard
	issuer     *token.Issuer
	candidates *mockCandidateFinder
	metrics    *recordingMetrics
}

func newGuardEnv(t *testing.T) *guardEnv {
	t.Helper()
	issuer, err := token.NewIssuer("guard-test-secret", token.IssuerConfig{})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	env := &guardEnv{
		issuer: issuer,
		candidates: &mockCandidateFinder{
			findByIDFn: func(_ context.Context, id string) (*model.Candidate, error) {
				if id == "cand-1" {
					return &model.Candidate{ID: "cand-1", Email: "alice@example.com", DisplayName: "Alice", IsActive: true}, nil
				}
				return nil, nil
			},
		},
		metrics: &recordingMetrics{},
	}
	transport := token.NewTransport(token.TransportConfig{CookieName: "token"})
	env.guard = NewAccessGuard(transport, issuer, env.candidates, env.metrics)
	return env
}

func (e *guardEnv) mustIssue(t *testing.T, id string, kind model.Kind) string {
	t.Helper()
	tok, err := e.issuer.Issue(&model.Principal{ID: id, Email: id + "@example.com", Kind: kind})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok.Raw
}

// capture はガード通過後のプリンシパルを記録するハンドラーを返す。
func capture(got **model.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFromContext(r.Context())
		*got = p
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- テスト ---

func TestRequireCandidate_BearerTokenResolvesFreshRecord(t *testing.T) {
	env := newGuardEnv(t)
	raw := env.mustIssue(t, "cand-1", model.KindCandidate)

	var got *model.Principal
	handler := env.guard.RequireCandidate()(capture(&got))

	req := httptest.NewRequest(http.MethodGet, "/candidates/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got == nil || got.ID != "cand-1" || got.Kind != model.KindCandidate {
		t.Fatalf("principal = %+v", got)
	}
	if got.Candidate == nil || got.DisplayName != "Alice" {
		t.Error("candidate guard should attach the fetched record")
	}
	if env.candidates.calls != 1 {
		t.Errorf("FindByID calls = %d, want 1", env.candidates.calls)
	}
}

func TestRequireCandidate_CookieFallback(t *testing.T) {
	env := newGuardEnv(t)
	raw := env.mustIssue(t, "cand-1", model.KindCandidate)

	var got *model.Principal
	handler := env.guard.RequireCandidate()(capture(&got))

	req := httptest.NewRequest(http.MethodGet, "/candidates/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: raw})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK || got == nil || got.ID != "cand-1" {
		t.Errorf("status = %d principal = %+v", w.Code, got)
	}
}

func TestRequireCandidate_HeaderWinsOverCookie(t *testing.T) {
	env := newGuardEnv(t)
	candidateRaw := env.mustIssue(t, "cand-1", model.KindCandidate)
	employerRaw := env.mustIssue(t, "emp-1", model.KindEmployer)

	var got *model.Principal
	handler := env.guard.RequireCandidate()(capture(&got))

	// ヘッダーの企業トークンが優先されるため、Cookieに求職者トークンがあっても403
	req := httptest.NewRequest(http.MethodGet, "/candidates/me", nil)
	req.Header.Set("Authorization", "Bearer "+employerRaw)
	req.AddCookie(&http.Cookie{Name: "token", Value: candidateRaw})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if got != nil {
		t.Error("handler must not run on rejection")
	}
}

func TestRequireEmployer_TrustsClaimsWithoutLookup(t *testing.T) {
	env := newGuardEnv(t)
	raw := env.mustIssue(t, "emp-1", model.KindEmployer)

	var got *model.Principal
	handler := env.guard.RequireEmployer()(capture(&got))

	req := httptest.NewRequest(http.MethodGet, "/applications", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK || got == nil || got.ID != "emp-1" || got.Kind != model.KindEmployer {
		t.Fatalf("status = %d principal = %+v", w.Code, got)
	}
	if got.Email != "emp-1@example.com" {
		t.Errorf("Email = %q, want claim value", got.Email)
	}
	if env.candidates.calls != 0 {
		t.Errorf("employer guard should not hit the store, calls = %d", env.candidates.calls)
	}
}

func TestAccessGuard_Rejections(t *testing.T) {
	env := newGuardEnv(t)

	expiredIssuer, _ := token.NewIssuer("guard-test-secret", token.IssuerConfig{CandidateTTL: time.Nanosecond})
	expiredTok, err := expiredIssuer.Issue(&model.Principal{ID: "cand-1", Email: "a@example.com", Kind: model.KindCandidate})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	otherIssuer, _ := token.NewIssuer("another-secret", token.IssuerConfig{})
	forged, _ := otherIssuer.Issue(&model.Principal{ID: "cand-1", Email: "a@example.com", Kind: model.KindCandidate})

	tests := []struct {
		name       string
		guard      func(next http.Handler) http.Handler
		authHeader string
		wantStatus int
		wantCode   string
		wantReason string
	}{
		{name: "no token", guard: env.guard.RequireCandidate(), wantStatus: 401, wantCode: model.ErrCodeNoToken, wantReason: reasonNoToken},
		{name: "malformed header is ignored", guard: env.guard.RequireCandidate(), authHeader: "Token abc", wantStatus: 401, wantCode: model.ErrCodeNoToken, wantReason: reasonNoToken},
		{name: "garbage token", guard: env.guard.RequireCandidate(), authHeader: "Bearer not.a.jwt", wantStatus: 401, wantCode: model.ErrCodeInvalidToken, wantReason: reasonInvalid},
		{name: "wrong signature", guard: env.guard.RequireCandidate(), authHeader: "Bearer " + forged.Raw, wantStatus: 401, wantCode: model.ErrCodeInvalidToken, wantReason: reasonInvalid},
		{name: "expired", guard: env.guard.RequireCandidate(), authHeader: "Bearer " + expiredTok.Raw, wantStatus: 401, wantCode: model.ErrCodeTokenExpired, wantReason: reasonExpired},
		{name: "employer token on candidate route", guard: env.guard.RequireCandidate(), authHeader: "Bearer " + env.mustIssue(t, "emp-1", model.KindEmployer), wantStatus: 403, wantCode: model.ErrCodeWrongKind, wantReason: reasonWrongKind},
		{name: "candidate token on employer route", guard: env.guard.RequireEmployer(), authHeader: "Bearer " + env.mustIssue(t, "cand-1", model.KindCandidate), wantStatus: 403, wantCode: model.ErrCodeWrongKind, wantReason: reasonWrongKind},
		{name: "candidate deleted", guard: env.guard.RequireCandidate(), authHeader: "Bearer " + env.mustIssue(t, "cand-gone", model.KindCandidate), wantStatus: 401, wantCode: model.ErrCodeAccountGone, wantReason: reasonAccountGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.metrics.rejections = nil

			called := false
			handler := tt.guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called {
				t.Error("handler must not run on rejection")
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode || body.Error == "" {
				t.Errorf("body = %+v, want code %s", body, tt.wantCode)
			}
			if len(env.metrics.rejections) != 1 || env.metrics.rejections[0] != tt.wantReason {
				t.Errorf("rejections = %v, want [%s]", env.metrics.rejections, tt.wantReason)
			}
		})
	}
}

func TestRequireCandidate_DeactivatedAccount(t *testing.T) {
	env := newGuardEnv(t)
	env.candidates.findByIDFn = func(_ context.Context, id string) (*model.Candidate, error) {
		return &model.Candidate{ID: id, IsActive: false}, nil
	}
	raw := env.mustIssue(t, "cand-1", model.KindCandidate)

	handler := env.guard.RequireCandidate()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/candidates/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeAccountDisabled {
		t.Errorf("code = %s", body.Code)
	}
}

func TestRequireCandidate_StoreFailureIs500(t *testing.T) {
	env := newGuardEnv(t)
	env.candidates.findByIDFn = func(context.Context, string) (*model.Candidate, error) {
		return nil, errors.New("connection refused")
	}
	raw := env.mustIssue(t, "cand-1", model.KindCandidate)

	handler := env.guard.RequireCandidate()(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/candidates/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInternal {
		t.Errorf("code = %s", body.Code)
	}
}

func TestRequireAny_AcceptsBothKinds(t *testing.T) {
	env := newGuardEnv(t)

	for _, kind := range []model.Kind{model.KindCandidate, model.KindEmployer} {
		t.Run(string(kind), func(t *testing.T) {
			raw := env.mustIssue(t, "p-1", kind)

			var got *model.Principal
			handler := env.guard.RequireAny()(capture(&got))
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req.Header.Set("Authorization", "Bearer "+raw)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK || got == nil || got.Kind != kind {
				t.Errorf("status = %d principal = %+v", w.Code, got)
			}
		})
	}
	if env.candidates.calls != 0 {
		t.Errorf("RequireAny should not hit the store, calls = %d", env.candidates.calls)
	}
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Error("expected no principal in empty context")
	}
	ctx := ContextWithPrincipal(context.Background(), &model.Principal{ID: "x", Kind: model.KindEmployer})
	if p, ok := PrincipalFromContext(ctx); !ok || p.ID != "x" {
		t.Errorf("principal = %+v, ok = %v", p, ok)
	}
}
