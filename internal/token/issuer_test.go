package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/careerboard/internal/model"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer("test-secret", IssuerConfig{
		CandidateTTL: 7 * 24 * time.Hour,
		EmployerTTL:  24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func candidatePrincipal() *model.Principal {
	return &model.Principal{ID: "cand-1", Email: "alice@example.com", Kind: model.KindCandidate}
}

func TestNewIssuer_EmptySecret_ReturnsError(t *testing.T) {
	_, err := NewIssuer("", IssuerConfig{})
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("err = %v, want ErrMissingSecret", err)
	}
}

func TestIssue_ThenParse_RoundTripsClaims(t *testing.T) {
	iss := newTestIssuer(t)

	tok, err := iss.Issue(candidatePrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.ExpiresAt.Sub(tok.IssuedAt) != 7*24*time.Hour {
		t.Errorf("lifetime = %v, want 168h", tok.ExpiresAt.Sub(tok.IssuedAt))
	}

	claims, err := iss.Parse(tok.Raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.PrincipalID != "cand-1" || claims.Email != "alice@example.com" || claims.Kind != model.KindCandidate {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Subject != "cand-1" {
		t.Errorf("sub = %q, want cand-1", claims.Subject)
	}
}

func TestIssue_EmployerUsesEmployerTTL(t *testing.T) {
	iss := newTestIssuer(t)

	tok, err := iss.Issue(&model.Principal{ID: "emp-1", Email: "hr@acme.test", Kind: model.KindEmployer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := tok.ExpiresAt.Sub(tok.IssuedAt); got != 24*time.Hour {
		t.Errorf("lifetime = %v, want 24h", got)
	}
}

func TestIssue_TwiceInSameSecond_ProducesDifferentTokens(t *testing.T) {
	iss := newTestIssuer(t)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return fixed }

	a, err := iss.Issue(candidatePrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, err := iss.Issue(candidatePrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if a.Raw == b.Raw {
		t.Error("expected different token values")
	}
}

func TestIssue_UnknownKind_ReturnsError(t *testing.T) {
	iss := newTestIssuer(t)
	if _, err := iss.Issue(&model.Principal{ID: "x", Kind: "admin"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParse_Expired(t *testing.T) {
	iss := newTestIssuer(t)
	iss.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }

	tok, err := iss.Issue(candidatePrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	iss.now = time.Now
	_, err = iss.Parse(tok.Raw)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestParse_WrongSecret_IsInvalid(t *testing.T) {
	iss := newTestIssuer(t)
	tok, err := iss.Issue(candidatePrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, _ := NewIssuer("another-secret", IssuerConfig{})
	_, err = other.Parse(tok.Raw)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestParse_TamperedPayload_IsInvalid(t *testing.T) {
	iss := newTestIssuer(t)
	tok, err := iss.Issue(candidatePrincipal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	employer, err := iss.Issue(&model.Principal{ID: "cand-1", Email: "alice@example.com", Kind: model.KindEmployer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// 求職者トークンの署名に企業トークンのペイロードを組み合わせる
	a := strings.Split(tok.Raw, ".")
	b := strings.Split(employer.Raw, ".")
	forged := a[0] + "." + b[1] + "." + a[2]

	if _, err := iss.Parse(forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestParse_Garbage_IsInvalid(t *testing.T) {
	iss := newTestIssuer(t)
	for _, raw := range []string{"", "abc", "a.b.c"} {
		if _, err := iss.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Parse(%q) err = %v, want ErrTokenInvalid", raw, err)
		}
	}
}

func TestParse_NoneAlgorithm_IsInvalid(t *testing.T) {
	iss := newTestIssuer(t)
	claims := Claims{
		PrincipalID: "cand-1",
		Kind:        model.KindCandidate,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   "cand-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := iss.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestParse_UnknownKind_IsInvalid(t *testing.T) {
	iss := newTestIssuer(t)
	claims := Claims{
		PrincipalID: "x",
		Kind:        "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := iss.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}
