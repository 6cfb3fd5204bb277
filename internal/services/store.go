package services

import (
	"context"
	"strconv"
)

// KVStore is the durable key/value store shared by every service. Failures
// are returned as storage errors (see NewStorageError).
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

const (
	KeyAuthToken      = "authToken"
	KeyAppLanguage    = "appLanguage"
	KeyMediaReference = "media.reference"
	KeyCachedChildren = "cache.children"

	prefixDraft      = "formDraft.section."
	prefixSubmission = "submission."
	prefixCache      = "cache."
)

func draftKey(sectionID int) string { return prefixDraft + strconv.Itoa(sectionID) }

func acknowledgedKey(group string) string { return prefixSubmission + group + ".acknowledgedId" }

func idempotencyKey(group string) string { return prefixSubmission + group + ".idempotencyKey" }

// DraftKey exposes the persisted key of a section draft.
func DraftKey(sectionID int) string { return draftKey(sectionID) }

// AcknowledgedKey exposes the persisted key of a submission marker.
func AcknowledgedKey(group string) string { return acknowledgedKey(group) }

func removePrefix(ctx context.Context, store KVStore, prefix string) error {
	keys, err := store.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	var firstErr error
	for _, k := range keys {
		if err := store.Remove(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
