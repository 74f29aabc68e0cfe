package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/polylex/internal/registry"
	"github.com/leapstack-labs/polylex/pkg/core"
)

// PluginStore reads and writes the id -> PluginRecord mapping kept in a Slot.
type PluginStore struct {
	mu     sync.Mutex
	slot   Slot
	logger *slog.Logger
}

// NewPluginStore creates a store on top of slot.
func NewPluginStore(slot Slot, logger *slog.Logger) *PluginStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PluginStore{slot: slot, logger: logger}
}

// LoadAll returns every persisted plugin keyed by canonical id.
// It never fails: an empty, unreadable or unparsable slot yields an empty
// mapping and the problem is logged. Individual bad entries are skipped.
func (s *PluginStore) LoadAll(ctx context.Context) map[string]core.PluginRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		s.logger.Warn("failed to read plugin store, starting empty", "error", err)
		return make(map[string]core.PluginRecord)
	}
	return records
}

// loadLocked reads and decodes the slot. A read or decode failure is
// returned so that write paths never save over data they could not see.
func (s *PluginStore) loadLocked(ctx context.Context) (map[string]core.PluginRecord, error) {
	out := make(map[string]core.PluginRecord)

	data, err := s.slot.Read(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "read", Cause: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &core.StoreError{Op: "decode", Cause: err}
	}

	// Keys already in canonical form win over spellings that normalize to
	// the same id; the rest go in lexical order.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := isCanonical(keys[i]), isCanonical(keys[j])
		if ci != cj {
			return ci
		}
		return keys[i] < keys[j]
	})

	for _, id := range keys {
		var rec struct {
			Name   *string         `json:"name"`
			Config json.RawMessage `json:"config"`
		}
		if err := json.Unmarshal(raw[id], &rec); err != nil || rec.Name == nil || len(rec.Config) == 0 {
			s.logger.Warn("skipping malformed plugin record", "id", id)
			continue
		}
		key := canonicalID(id)
		if key == "" {
			s.logger.Warn("skipping plugin record with empty id")
			continue
		}
		if _, dup := out[key]; dup {
			s.logger.Warn("skipping duplicate plugin record", "id", id, "canonical", key)
			continue
		}
		out[key] = core.PluginRecord{Name: *rec.Name, Config: core.CloneConfig(rec.Config)}
	}
	return out, nil
}

func canonicalID(id string) string {
	return registry.NormalizeID(strings.TrimSpace(id))
}

func isCanonical(id string) bool {
	return canonicalID(id) == id
}

// SaveAll replaces the whole persisted mapping in one write.
func (s *PluginStore) SaveAll(ctx context.Context, records map[string]core.PluginRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, records)
}

func (s *PluginStore) saveLocked(ctx context.Context, records map[string]core.PluginRecord) error {
	if records == nil {
		records = map[string]core.PluginRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return &core.StoreError{Op: "encode", Cause: err}
	}
	if err := s.slot.Write(ctx, data); err != nil {
		return &core.StoreError{Op: "write", Cause: err}
	}
	s.logger.Debug("plugin store saved", "plugins", len(records))
	return nil
}

// Update loads the mapping, applies fn and saves the result, all under the
// store lock. When the slot cannot be read or decoded, or fn returns an
// error, nothing is written.
func (s *PluginStore) Update(ctx context.Context, fn func(records map[string]core.PluginRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if err := fn(records); err != nil {
		return err
	}
	return s.saveLocked(ctx, records)
}

// IDs returns the persisted ids in sorted order.
func IDs(records map[string]core.PluginRecord) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes the underlying slot.
func (s *PluginStore) Close() error {
	return s.slot.Close()
}
