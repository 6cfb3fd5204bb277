package db

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/autisahara/companion/internal/services"
)

const (
	keySize   = 32
	nonceSize = 24
)

var errSealedOpen = errors.New("sealed value could not be opened")

// SealedStore encrypts the values of sensitive keys before handing them to
// the wrapped store. Other keys pass through unchanged.
type SealedStore struct {
	inner     services.KVStore
	key       [keySize]byte
	sensitive map[string]struct{}
	rand      io.Reader
}

var _ services.KVStore = (*SealedStore)(nil)

// ParseSealKey decodes a base64 (std or raw URL) 32-byte key.
func ParseSealKey(encoded string) ([keySize]byte, error) {
	var key [keySize]byte
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return key, fmt.Errorf("decode seal key: %w", err)
		}
	}
	if len(raw) != keySize {
		return key, fmt.Errorf("seal key must be %d bytes, got %d", keySize, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func NewSealedStore(inner services.KVStore, key [keySize]byte, sensitiveKeys ...string) *SealedStore {
	s := &SealedStore{inner: inner, key: key, sensitive: map[string]struct{}{}, rand: rand.Reader}
	for _, k := range sensitiveKeys {
		s.sensitive[k] = struct{}{}
	}
	return s
}

func (s *SealedStore) isSensitive(key string) bool {
	_, ok := s.sensitive[key]
	return ok
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok || !s.isSensitive(key) {
		return v, ok, err
	}
	plain, err := s.open(v)
	if err != nil {
		return "", false, services.NewStorageError("open", key, err)
	}
	return plain, true, nil
}

// Set seals sensitive values. Sealing uses a fresh nonce, so the idempotence
// check happens on the plaintext.
func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	if !s.isSensitive(key) {
		return s.inner.Set(ctx, key, value)
	}
	if cur, ok, err := s.Get(ctx, key); err == nil && ok && cur == value {
		return nil
	}
	sealed, err := s.seal(value)
	if err != nil {
		return services.NewStorageError("seal", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *SealedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.Keys(ctx, prefix)
}

func (s *SealedStore) seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *SealedStore) open(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", errSealedOpen
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", errSealedOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errSealedOpen
	}
	return string(plain), nil
}
