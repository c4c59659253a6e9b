// Package memstore provides an in-memory implementation of storage.Client
// for tests and for scenarios where persistence is not required.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/fortressi/onboard/set"
	"github.com/fortressi/onboard/storage"
)

// ErrDropWrite may be armed with InjectFault. The next write then reports
// success without persisting anything.
var ErrDropWrite = errors.New("memstore: drop write")

// Method names a Collection method for fault injection.
type Method string

const (
	MethodInsert  Method = "insert"
	MethodFindOne Method = "find_one"
	MethodUpdate  Method = "update"
	MethodDelete  Method = "delete"
)

type faultKey struct {
	collection string
	method     Method
}

// Store is an in-memory storage.Client. Each collection keeps its records
// in an ordered map keyed by id.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	indexes     map[string][]storage.UniqueIndex
	faults      map[faultKey][]error
}

// New creates an empty store enforcing the given unique indexes.
func New(indexes map[string][]storage.UniqueIndex) *Store {
	if indexes == nil {
		indexes = map[string][]storage.UniqueIndex{}
	}
	return &Store{
		collections: make(map[string]*collection),
		indexes:     indexes,
		faults:      make(map[faultKey][]error),
	}
}

// NewDefault creates an empty store with the onboarding schema indexes.
func NewDefault() *Store {
	return New(storage.DefaultIndexes())
}

// Collection implements storage.Client.
func (s *Store) Collection(name string) storage.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectionLocked(name)
}

func (s *Store) collectionLocked(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{
			store:   s,
			name:    name,
			records: btree.NewMap[string, storage.Document](16),
			indexes: s.indexes[name],
		}
		s.collections[name] = c
	}
	return c
}

// InjectFault arms err for the next call of method on collection. Faults
// queue up and fire once each, in the order they were injected.
// A nil err lets one call through, which targets a later call.
func (s *Store) InjectFault(collection string, method Method, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := faultKey{collection: collection, method: method}
	s.faults[k] = append(s.faults[k], err)
}

// takeFault pops the next armed fault. Callers hold s.mu.
func (s *Store) takeFault(collection string, method Method) error {
	k := faultKey{collection: collection, method: method}
	q := s.faults[k]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	if len(q) == 1 {
		delete(s.faults, k)
	} else {
		s.faults[k] = q[1:]
	}
	return err
}

// Count returns the number of records in a collection.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0
	}
	return c.records.Len()
}

// All returns copies of every record in a collection, ordered by id.
func (s *Store) All(name string) []storage.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]storage.Document, 0, c.records.Len())
	c.records.Scan(func(_ string, doc storage.Document) bool {
		out = append(out, doc.Clone())
		return true
	})
	return out
}

type collection struct {
	store   *Store
	name    string
	records *btree.Map[string, storage.Document]
	indexes []storage.UniqueIndex
	keys    set.Set[string]
}

func (c *collection) Insert(ctx context.Context, doc storage.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	fault := c.store.takeFault(c.name, MethodInsert)
	if fault != nil && !errors.Is(fault, ErrDropWrite) {
		return "", fault
	}

	record := doc.Clone()
	if record == nil {
		record = storage.Document{}
	}
	id := record.ID()
	if id == "" {
		id = uuid.NewString()
	}
	record[storage.IDField] = id

	if _, exists := c.records.Get(id); exists {
		return "", fmt.Errorf("%s/%s: %w", c.name, id, storage.ErrUniqueViolation)
	}
	keys := c.indexKeys(record)
	for _, k := range keys {
		if c.keys.Contains(k) {
			return "", fmt.Errorf("%s: %w", c.name, storage.ErrUniqueViolation)
		}
	}
	if fault != nil {
		return id, nil
	}
	for _, k := range keys {
		c.keys.Insert(k)
	}
	c.records.Set(id, record)
	return id, nil
}

func (c *collection) FindOne(ctx context.Context, filter storage.Filter) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.store.mu.Lock()
	fault := c.store.takeFault(c.name, MethodFindOne)
	c.store.mu.Unlock()
	if fault != nil {
		return nil, fault
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	var found storage.Document
	c.records.Scan(func(_ string, doc storage.Document) bool {
		if filter.Matches(doc) {
			found = doc.Clone()
			return false
		}
		return true
	})
	return found, nil
}

func (c *collection) Update(ctx context.Context, id string, patch storage.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	fault := c.store.takeFault(c.name, MethodUpdate)
	if fault != nil && !errors.Is(fault, ErrDropWrite) {
		return fault
	}

	current, ok := c.records.Get(id)
	if !ok {
		return fmt.Errorf("%s/%s: %w", c.name, id, storage.ErrNotFound)
	}
	next := storage.ApplyPatch(current, patch)

	oldKeys := c.indexKeys(current)
	for _, k := range oldKeys {
		c.keys.Remove(k)
	}
	newKeys := c.indexKeys(next)
	for _, k := range newKeys {
		if c.keys.Contains(k) {
			for _, old := range oldKeys {
				c.keys.Insert(old)
			}
			return fmt.Errorf("%s/%s: %w", c.name, id, storage.ErrUniqueViolation)
		}
	}
	if fault != nil {
		for _, old := range oldKeys {
			c.keys.Insert(old)
		}
		return nil
	}
	for _, k := range newKeys {
		c.keys.Insert(k)
	}
	c.records.Set(id, next)
	return nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	fault := c.store.takeFault(c.name, MethodDelete)
	if fault != nil && !errors.Is(fault, ErrDropWrite) {
		return fault
	}

	current, ok := c.records.Get(id)
	if !ok {
		return fmt.Errorf("%s/%s: %w", c.name, id, storage.ErrNotFound)
	}
	if fault != nil {
		return nil
	}
	for _, k := range c.indexKeys(current) {
		c.keys.Remove(k)
	}
	c.records.Delete(id)
	return nil
}

func (c *collection) indexKeys(doc storage.Document) []string {
	keys := make([]string, 0, len(c.indexes))
	for _, idx := range c.indexes {
		if k, ok := idx.Key(doc); ok {
			keys = append(keys, k)
		}
	}
	return keys
}
