package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MaxSecretBytes はbcryptが扱えるパスワードの最大バイト数。
// 文字数ではなくUTF-8のバイト数で数える。
const MaxSecretBytes = 72

// ErrSecretTooLong はパスワードがMaxSecretBytesを超えることを表す。
var ErrSecretTooLong = errors.New("secret exceeds 72 bytes")

// PasswordHasher はパスワードのハッシュ化と照合を行う。
type PasswordHasher interface {
	// Hash はランダムなソルトを付けてハッシュ化する。同じ入力でも毎回異なる値になる。
	Hash(ctx context.Context, secret string) (string, error)
	// Verify は平文とハッシュを照合する。不正な形式のハッシュに対してもfalseを返すだけでエラーにしない。
	Verify(ctx context.Context, secret, hash string) bool
}

// BcryptHasher はbcryptによるPasswordHasher実装。
// CPU負荷の高いbcrypt計算の同時実行数をセマフォで制限する。
type BcryptHasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewBcryptHasher はBcryptHasherを生成する。
// concurrencyが0以下の場合はCPU数を上限とする。
func NewBcryptHasher(cost, concurrency int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &BcryptHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}
}

// Hash はsecretをbcryptでハッシュ化する。
func (h *BcryptHasher) Hash(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret must not be empty")
	}
	if len(secret) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire hashing slot: %w", err)
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify はsecretとhashを定数時間で照合する。
func (h *BcryptHasher) Verify(ctx context.Context, secret, hash string) bool {
	if secret == "" || hash == "" || len(secret) > MaxSecretBytes {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
