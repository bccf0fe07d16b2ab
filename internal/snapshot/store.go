// Package snapshot persists controller state between runs.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apierrors "github.com/diogo/geminiworkshop/internal/errors"
)

// Store is a keyed blob store for serialized state
type Store interface {
	Load(key string) ([]byte, bool, error)
	Save(key string, payload []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// MemoryStore keeps snapshots in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (m *MemoryStore) Save(key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = bytes.Clone(payload)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error { return nil }

// Schema validates a payload before it is restored
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document
func CompileSchema(doc string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas
func MustCompileSchema(doc string) *Schema {
	s, err := CompileSchema(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks payload against the schema
func (s *Schema) Validate(payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrInvalidSnapshot, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrInvalidSnapshot, err)
	}
	return nil
}

// Restore loads key from store into v. It reports false when nothing is
// stored. A payload that fails the schema is reported as ErrInvalidSnapshot
// and v is left untouched.
func Restore(store Store, key string, schema *Schema, v any) (bool, error) {
	payload, ok, err := store.Load(key)
	if err != nil || !ok {
		return false, err
	}
	if schema != nil {
		if err := schema.Validate(payload); err != nil {
			return false, err
		}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("%w: %v", apierrors.ErrInvalidSnapshot, err)
	}
	return true, nil
}

// Persist serializes v and saves it under key
func Persist(store Store, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return store.Save(key, payload)
}
