// Package store implements the Config Store: load, validate, default, and
// persist the JSON document holding targets, routes, and templates.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default returns the seed document used when no config file exists yet,
// mirroring webhook_server.py's WebhookForwarder._load_config default_config.
func Default() *Document {
	return &Document{
		Targets: []Target{},
		Routes: map[string]Route{
			"/webhook": {
				TargetIDs:   []string{},
				Description: "默认webhook路由",
				Methods:     []string{"POST"},
				Headers:     map[string]string{},
				QueryParams: map[string]string{},
			},
		},
		Templates: map[string]map[string]any{
			"trade": {
				"event_type":  "trade",
				"description": "交易信号: {symbol} {operation} 价格: {price} 数量: {amount}",
				"data": map[string]any{
					"symbol":    "{symbol}",
					"operation": "{operation}",
					"price":     "{price}",
					"amount":    "{amount}",
				},
			},
			"error": {
				"event_type":  "error",
				"description": "错误通知: {message}",
				"data": map[string]any{
					"message": "{message}",
				},
			},
		},
		MessageFormat: map[string]string{
			"trade":            "交易信号: {symbol} {operation} 价格: {price} 数量: {amount}",
			"position_update":  "持仓更新: {symbol} 数量: {amount} 价格: {current_price} 盈亏: {pnl}",
			"error":            "错误通知: {message}",
			"status":           "状态通知: {message}",
		},
	}
}

// Store loads, validates, defaults, and persists the config document. A
// single writer lock serializes mutations; GetSnapshot hands out a
// copy-on-read clone so callers never observe a half-written document.
type Store struct {
	path string
	log  *zap.Logger

	mu  sync.RWMutex
	doc *Document
}

// New creates a Store bound to path without touching disk. Call Load
// before using it.
func New(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Load reads the document from disk. A missing file causes the default
// document to be written to disk and adopted in memory. Missing top-level
// keys (routes, templates) are back-filled with defaults and logged as
// warnings. A malformed file falls back to in-memory defaults; the process
// stays up.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = Default()
		s.log.Warn("config file not found, writing default", zap.String("path", s.path))
		return s.writeLocked()
	}
	if err != nil {
		s.log.Error("failed to read config file, falling back to defaults", zap.Error(err))
		s.doc = Default()
		return nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Error("malformed config file, falling back to defaults", zap.Error(err))
		s.doc = Default()
		return nil
	}

	if doc.Routes == nil {
		doc.Routes = Default().Routes
		s.log.Warn("config missing routes field, backfilled with default")
	}
	if doc.Templates == nil {
		doc.Templates = Default().Templates
		s.log.Warn("config missing templates field, backfilled with default")
	}
	if doc.Targets == nil {
		doc.Targets = []Target{}
	}

	s.doc = &doc
	s.log.Info("loaded config file", zap.String("path", s.path))
	return nil
}

// GetSnapshot returns a consistent copy of the current document; see
// Document.Clone for which parts of it are shared with the store.
func (s *Store) GetSnapshot() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Mutate runs fn against the authoritative document under the writer lock
// and persists the result. Write failures are logged but non-fatal — the
// in-memory change remains authoritative regardless of disk state.
func (s *Store) Mutate(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.doc); err != nil {
		return err
	}
	if err := s.writeLocked(); err != nil {
		s.log.Error("failed to persist config", zap.Error(err))
	}
	return nil
}

// writeLocked performs a whole-file rewrite of the current document.
// Caller must hold s.mu. Indented JSON, non-ASCII preserved: encoding/json
// is used here deliberately instead of sonic, which has no MarshalIndent
// analogue — see SPEC_FULL.md §3.
func (s *Store) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := s.path + fmt.Sprintf(".tmp-%d", time.Now().UnixNano())
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp config: %w", err)
	}
	s.log.Info("config saved", zap.String("path", s.path))
	return nil
}

// GenerateTargetID produces the spec-mandated target_<epoch-seconds> form.
func GenerateTargetID() string {
	return fmt.Sprintf("target_%d", time.Now().Unix())
}
