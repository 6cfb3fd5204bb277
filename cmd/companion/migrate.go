package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/models"
	"github.com/autisahara/companion/internal/services"
)

const legacySectionPrefix = "formSection"

// importLegacy copies a JSON dump of the previous app's key/value storage
// into store. Token and language keep their names; formSectionN values go
// through the draft accumulator so they are validated like fresh input.
// Sections that no longer validate are skipped. A missing dump is not an
// error.
func importLegacy(ctx context.Context, path string, store services.KVStore, drafts *services.DraftAccumulator, log *zap.Logger) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read legacy snapshot: %w", err)
	}
	var dump map[string]json.RawMessage
	if err := json.Unmarshal(raw, &dump); err != nil {
		return 0, fmt.Errorf("parse legacy snapshot: %w", err)
	}
	log.Info("first run detected, importing legacy snapshot", zap.String("path", path))

	keys := make([]string, 0, len(dump))
	for k := range dump {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	imported := 0
	for _, k := range keys {
		value := legacyValue(dump[k])
		switch {
		case k == services.KeyAuthToken:
			if strings.TrimSpace(value) == "" {
				continue
			}
			if err := store.Set(ctx, services.KeyAuthToken, strings.TrimSpace(value)); err != nil {
				return imported, err
			}
		case k == services.KeyAppLanguage:
			if !models.Language(value).Valid() {
				log.Warn("skipping legacy language", zap.String("value", value))
				continue
			}
			if err := store.Set(ctx, services.KeyAppLanguage, value); err != nil {
				return imported, err
			}
		case strings.HasPrefix(k, legacySectionPrefix):
			id, err := strconv.Atoi(strings.TrimPrefix(k, legacySectionPrefix))
			if err != nil {
				log.Debug("skipping legacy key", zap.String("key", k))
				continue
			}
			var fields map[string]any
			if err := json.Unmarshal([]byte(value), &fields); err != nil {
				log.Warn("skipping unreadable legacy section", zap.Int("section", id), zap.Error(err))
				continue
			}
			if err := drafts.SetSection(ctx, id, fields); err != nil {
				if services.IsStorage(err) {
					return imported, err
				}
				log.Warn("skipping invalid legacy section", zap.Int("section", id), zap.Error(err))
				continue
			}
		default:
			log.Debug("skipping legacy key", zap.String("key", k))
			continue
		}
		imported++
	}
	return imported, nil
}

// legacyValue unwraps JSON strings; other values are kept as raw JSON text.
func legacyValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
