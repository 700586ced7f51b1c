package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *BcryptHasher {
	return NewBcryptHasher(bcrypt.MinCost, 2)
}

func TestBcryptHasher_VerifyOwnHash(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	for _, secret := range []string{"Secret123!", "パスワード", "x"} {
		hash, err := h.Hash(ctx, secret)
		if err != nil {
			t.Fatalf("Hash(%q): %v", secret, err)
		}
		if !h.Verify(ctx, secret, hash) {
			t.Errorf("Verify(%q, hash(%q)) = false, want true", secret, secret)
		}
	}
}

func TestBcryptHasher_RejectsOtherSecret(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	hash, err := h.Hash(ctx, "Secret123!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h.Verify(ctx, "Secret123?", hash) {
		t.Error("Verify with a different secret should be false")
	}
}

func TestBcryptHasher_SaltsEachCall(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	a, _ := h.Hash(ctx, "Secret123!")
	b, _ := h.Hash(ctx, "Secret123!")
	if a == b {
		t.Error("two hashes of the same secret should differ")
	}
}

func TestBcryptHasher_MalformedHashIsFalse(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	for _, hash := range []string{"", "not-a-hash", "$2a$10$short"} {
		if h.Verify(ctx, "Secret123!", hash) {
			t.Errorf("Verify against %q should be false", hash)
		}
	}
}

func TestBcryptHasher_EmptySecret(t *testing.T) {
	h := newTestHasher()
	if _, err := h.Hash(context.Background(), ""); err == nil {
		t.Error("Hash(\"\") should return an error")
	}
}

func TestBcryptHasher_CancelledContext(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, 1)
	hash, err := h.Hash(context.Background(), "Secret123!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	// スロットを占有した状態でキャンセル済みコンテキストを渡す
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if h.Verify(ctx, "Secret123!", hash) {
		t.Error("Verify with cancelled context should be false")
	}
	if _, err := h.Hash(ctx, "Secret123!"); err == nil {
		t.Error("Hash with cancelled context should return an error")
	}
}

func TestNewBcryptHasher_InvalidCostFallsBack(t *testing.T) {
	h := NewBcryptHasher(1, 0)
	if h.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.DefaultCost)
	}
}

func TestBcryptHasher_ByteLimit(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "72 ascii bytes", secret: strings.Repeat("a", 72)},
		{name: "73 ascii bytes", secret: strings.Repeat("a", 73), wantErr: true},
		{name: "24 multibyte runes is 72 bytes", secret: strings.Repeat("秘", 24)},
		{name: "30 multibyte runes is 90 bytes", secret: strings.Repeat("秘", 30), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(ctx, tt.secret)
			if tt.wantErr {
				if !errors.Is(err, ErrSecretTooLong) {
					t.Fatalf("err = %v, want ErrSecretTooLong", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Hash: %v", err)
			}
			if !h.Verify(ctx, tt.secret, hash) {
				t.Error("Verify = false, want true")
			}
		})
	}
}

func TestBcryptHasher_VerifyOverLimitIsFalse(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	prefix := strings.Repeat("a", 72)
	hash, err := h.Hash(ctx, prefix)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h.Verify(ctx, prefix+"extra", hash) {
		t.Error("Verify with a secret over the limit should be false")
	}
}
