// ABOUTME: Verification code issuing and checking over an expiring store
// ABOUTME: Codes are six digits, expire after a TTL, and are consumed on first match
package verify

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultCodeTTL     = 10 * time.Minute
	DefaultMaxAttempts = 5

	keyPrefix = "verify:"
)

type codeRecord struct {
	Code      string    `json:"code"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options configures Codes. Zero values fall back to defaults.
type Options struct {
	TTL         time.Duration
	MaxAttempts int
	Now         func() time.Time
	Generate    func() (string, error)
	Logger      *log.Logger
}

// Codes issues and checks verification codes keyed by destination (e.g. a phone number).
// Issue and Check are serialised per destination within one process. Instances
// sharing a store across processes can each spend the attempt budget.
type Codes struct {
	locks       keyedMutex
	store       Store
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	generate    func() (string, error)
	logger      *log.Logger
}

func NewCodes(store Store, opts Options) *Codes {
	c := &Codes{
		store:       store,
		ttl:         opts.TTL,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		generate:    opts.Generate,
		logger:      opts.Logger,
	}

	if c.ttl <= 0 {
		c.ttl = DefaultCodeTTL
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.generate == nil {
		c.generate = randomCode
	}
	if c.logger == nil {
		c.logger = log.Default()
	}

	return c
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates a fresh code for destination, replacing any outstanding one.
func (c *Codes) Issue(ctx context.Context, destination string) (string, time.Time, error) {
	if destination == "" {
		return "", time.Time{}, fmt.Errorf("destination is required")
	}

	code, err := c.generate()
	if err != nil {
		return "", time.Time{}, err
	}

	defer c.locks.lock(destination)()

	rec := codeRecord{Code: code, ExpiresAt: c.now().Add(c.ttl)}
	if err := c.save(ctx, destination, rec); err != nil {
		return "", time.Time{}, err
	}

	c.logger.Debug("issued verification code", "destination", destination, "expires", rec.ExpiresAt)
	return code, rec.ExpiresAt, nil
}

// Check reports whether code matches the outstanding code for destination.
// A match consumes the code. Too many misses discard it.
func (c *Codes) Check(ctx context.Context, destination, code string) (bool, error) {
	key := keyPrefix + destination
	defer c.locks.lock(destination)()

	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var rec codeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false, fmt.Errorf("failed to decode verification record: %w", err)
	}

	if !c.now().Before(rec.ExpiresAt) {
		return false, c.store.Delete(ctx, key)
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1 {
		return true, c.store.Delete(ctx, key)
	}

	rec.Attempts++
	if rec.Attempts >= c.maxAttempts {
		c.logger.Warn("verification code discarded after failed attempts", "destination", destination, "attempts", rec.Attempts)
		return false, c.store.Delete(ctx, key)
	}

	return false, c.save(ctx, destination, rec)
}

func (c *Codes) save(ctx context.Context, destination string, rec codeRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode verification record: %w", err)
	}

	ttl := rec.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	if err := c.store.Set(ctx, keyPrefix+destination, raw, ttl); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	return nil
}

// keyedMutex hands out one mutex per key and drops it when nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until key is free and returns its unlock func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
