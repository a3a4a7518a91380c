package jwtx

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyDirectory resolves key identifiers to the signing keys of one issuer.
type KeyDirectory interface {
	Resolve(ctx context.Context, keyID string) (SigningKey, error)
}

// SigningKey is a public key published by an issuer.
type SigningKey struct {
	KeyID     string
	Algorithm string
	PublicKey *rsa.PublicKey
}

// KeySet is an immutable snapshot of the keys fetched from one endpoint.
type KeySet struct {
	keys      []SigningKey
	index     map[string]int
	fetchedAt time.Time
}

// NewKeySet builds a snapshot from keys. Later duplicates of a key id are ignored.
func NewKeySet(keys []SigningKey, fetchedAt time.Time) *KeySet {
	set := &KeySet{
		keys:      make([]SigningKey, 0, len(keys)),
		index:     make(map[string]int, len(keys)),
		fetchedAt: fetchedAt,
	}
	for _, k := range keys {
		if _, dup := set.index[k.KeyID]; dup {
			continue
		}
		set.index[k.KeyID] = len(set.keys)
		set.keys = append(set.keys, k)
	}
	return set
}

// Lookup returns the key with the given id.
func (s *KeySet) Lookup(keyID string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	i, ok := s.index[keyID]
	if !ok {
		return SigningKey{}, false
	}
	return s.keys[i], true
}

// Keys returns the keys in publication order.
func (s *KeySet) Keys() []SigningKey {
	if s == nil {
		return nil
	}
	return append([]SigningKey(nil), s.keys...)
}

// FetchedAt reports when the snapshot was fetched.
func (s *KeySet) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// JWKSDirectory serves keys from a remote JWKS endpoint, caching the last
// fetched set until it expires or a key id misses.
type JWKSDirectory struct {
	url     string
	client  *http.Client
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	current   atomic.Pointer[KeySet]
	refreshMu sync.Mutex
}

// NewJWKSDirectory builds a directory for the key set published at url.
func NewJWKSDirectory(url string, cfg VerifierConfig) *JWKSDirectory {
	cfg.normalize()
	return &JWKSDirectory{
		url:     url,
		client:  cfg.HTTPClient,
		timeout: cfg.HTTPTimeout,
		ttl:     cfg.KeySetTTL,
		now:     cfg.Now,
	}
}

// URL returns the JWKS endpoint of the directory.
func (d *JWKSDirectory) URL() string {
	return d.url
}

// Current returns the cached key set, or nil before the first fetch.
func (d *JWKSDirectory) Current() *KeySet {
	return d.current.Load()
}

// Resolve returns the key for keyID. A miss on the cached set triggers one
// fetch before the key is reported unknown.
func (d *JWKSDirectory) Resolve(ctx context.Context, keyID string) (SigningKey, error) {
	set := d.current.Load()
	if d.fresh(set) {
		if key, ok := set.Lookup(keyID); ok {
			return key, nil
		}
	}

	set, err := d.refresh(ctx, set)
	if err != nil {
		return SigningKey{}, err
	}
	if key, ok := set.Lookup(keyID); ok {
		return key, nil
	}
	return SigningKey{}, newError(ErrCodeUnknownSigningKey, fmt.Errorf("key %q not published at %s", keyID, d.url))
}

// Refresh unconditionally fetches the key set.
func (d *JWKSDirectory) Refresh(ctx context.Context) error {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()
	_, err := d.fetch(ctx)
	return err
}

func (d *JWKSDirectory) fresh(set *KeySet) bool {
	return set != nil && d.now().Sub(set.fetchedAt) < d.ttl
}

// refresh fetches a new set unless another caller replaced seen while this
// one waited for the lock.
func (d *JWKSDirectory) refresh(ctx context.Context, seen *KeySet) (*KeySet, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	if cur := d.current.Load(); cur != seen && d.fresh(cur) {
		return cur, nil
	}
	return d.fetch(ctx)
}

// fetch must be called with refreshMu held.
func (d *JWKSDirectory) fetch(ctx context.Context) (*KeySet, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := jwk.Fetch(fetchCtx, d.url, jwk.WithHTTPClient(d.client))
	if err != nil {
		return nil, newError(ErrCodeKeyFetch, fmt.Errorf("fetch %s: %w", d.url, err))
	}
	set, err := keySetFromJWKS(raw, d.now())
	if err != nil {
		return nil, newError(ErrCodeKeyFetch, fmt.Errorf("decode %s: %w", d.url, err))
	}
	d.current.Store(set)
	return set, nil
}

func keySetFromJWKS(raw jwk.Set, fetchedAt time.Time) (*KeySet, error) {
	keys := make([]SigningKey, 0, raw.Len())
	for i := 0; i < raw.Len(); i++ {
		key, ok := raw.Key(i)
		if !ok || key.KeyID() == "" || key.KeyType() != jwa.RSA {
			continue
		}
		alg := jwa.RS256.String()
		if a := key.Algorithm(); a != nil && a.String() != "" {
			alg = a.String()
		}
		var pub interface{}
		if err := key.Raw(&pub); err != nil {
			return nil, fmt.Errorf("key %q: %w", key.KeyID(), err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			// private key material published by mistake is never used
			continue
		}
		keys = append(keys, SigningKey{
			KeyID:     key.KeyID(),
			Algorithm: alg,
			PublicKey: rsaPub,
		})
	}
	return NewKeySet(keys, fetchedAt), nil
}

// StaticDirectory serves a fixed set of keys and never fetches.
type StaticDirectory struct {
	set *KeySet
}

// NewStaticDirectory returns a directory over keys.
func NewStaticDirectory(keys ...SigningKey) *StaticDirectory {
	return &StaticDirectory{set: NewKeySet(keys, time.Time{})}
}

// Resolve implements KeyDirectory.
func (s *StaticDirectory) Resolve(_ context.Context, keyID string) (SigningKey, error) {
	if key, ok := s.set.Lookup(keyID); ok {
		return key, nil
	}
	return SigningKey{}, newError(ErrCodeUnknownSigningKey, fmt.Errorf("key %q not configured", keyID))
}
