// Package badgerstore implements storage.Client on top of BadgerDB.
//
// Every write runs inside a single badger transaction that updates the
// record key and its unique index keys together, which gives the same
// single-entity atomicity the saga is designed around. Records are stored
// as JSON.
//
// Key layout:
//
//	r/<collection>/<id>               record document
//	u/<collection>/<index key>        id of the record owning the key
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fortressi/onboard/storage"
)

// Config configures Open.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal log lines. Nil disables them.
	Logger *zap.Logger

	// Indexes are the unique constraints per collection. Nil means
	// storage.DefaultIndexes().
	Indexes map[string][]storage.UniqueIndex
}

// Store is a badger-backed storage.Client.
type Store struct {
	db      *badger.DB
	indexes map[string][]storage.UniqueIndex
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

func newBadgerLogger(l *zap.Logger) *badgerLogger {
	return &badgerLogger{logger: l.Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Open opens (or creates) a badger database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(newBadgerLogger(cfg.Logger))
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	indexes := cfg.Indexes
	if indexes == nil {
		indexes = storage.DefaultIndexes()
	}
	return &Store{db: db, indexes: indexes}, nil
}

// OpenInMemory opens an in-memory database with the default indexes.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection implements storage.Client.
func (s *Store) Collection(name string) storage.Collection {
	return &collection{db: s.db, name: name, indexes: s.indexes[name]}
}

type collection struct {
	db      *badger.DB
	name    string
	indexes []storage.UniqueIndex
}

// conflictAttempts bounds how often a write is re-run after losing an
// optimistic-concurrency race. A re-run observes the winner's keys, so a
// lost race on a unique key surfaces as storage.ErrUniqueViolation.
const conflictAttempts = 10

// write runs fn in a read-write transaction, re-running it when badger
// reports a conflict with a concurrent commit.
func (c *collection) write(ctx context.Context, fn func(txn *badger.Txn) error) error {
	return retry.Do(
		func() error { return c.db.Update(fn) },
		retry.Context(ctx),
		retry.Attempts(conflictAttempts),
		retry.Delay(time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, badger.ErrConflict) }),
		retry.LastErrorOnly(true),
	)
}

func (c *collection) recordPrefix() []byte {
	return []byte("r/" + c.name + "/")
}

func (c *collection) recordKey(id string) []byte {
	return append(c.recordPrefix(), id...)
}

func (c *collection) indexKey(k string) []byte {
	return []byte("u/" + c.name + "/" + k)
}

func (c *collection) Insert(ctx context.Context, doc storage.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
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

	err := c.write(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(c.recordKey(id)); err == nil {
			return fmt.Errorf("%s/%s: %w", c.name, id, storage.ErrUniqueViolation)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := c.claimIndexKeys(txn, id, record); err != nil {
			return err
		}
		return c.put(txn, id, record)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *collection) FindOne(ctx context.Context, filter storage.Filter) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var found storage.Document
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := c.recordPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var doc storage.Document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return fmt.Errorf("decode %s record: %w", c.name, err)
			}
			if filter.Matches(doc) {
				found = doc
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (c *collection) Update(ctx context.Context, id string, patch storage.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(ctx, func(txn *badger.Txn) error {
		current, err := c.get(txn, id)
		if err != nil {
			return err
		}
		next := storage.ApplyPatch(current, patch)

		for _, k := range c.keysFor(current) {
			if err := txn.Delete(c.indexKey(k)); err != nil {
				return err
			}
		}
		if err := c.claimIndexKeys(txn, id, next); err != nil {
			return err
		}
		return c.put(txn, id, next)
	})
}

func (c *collection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(ctx, func(txn *badger.Txn) error {
		current, err := c.get(txn, id)
		if err != nil {
			return err
		}
		for _, k := range c.keysFor(current) {
			if err := txn.Delete(c.indexKey(k)); err != nil {
				return err
			}
		}
		return txn.Delete(c.recordKey(id))
	})
}

func (c *collection) get(txn *badger.Txn, id string) (storage.Document, error) {
	item, err := txn.Get(c.recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", c.name, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var doc storage.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return doc, nil
}

func (c *collection) put(txn *badger.Txn, id string, doc storage.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return txn.Set(c.recordKey(id), raw)
}

// claimIndexKeys writes every index key for doc, failing if one is held by
// another record.
func (c *collection) claimIndexKeys(txn *badger.Txn, id string, doc storage.Document) error {
	for _, k := range c.keysFor(doc) {
		key := c.indexKey(k)
		item, err := txn.Get(key)
		switch {
		case err == nil:
			owner, verr := item.ValueCopy(nil)
			if verr != nil {
				return verr
			}
			if string(owner) != id {
				return fmt.Errorf("%s: %w", c.name, storage.ErrUniqueViolation)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		if err := txn.Set(key, []byte(id)); err != nil {
			return err
		}
	}
	return nil
}

func (c *collection) keysFor(doc storage.Document) []string {
	keys := make([]string, 0, len(c.indexes))
	for _, idx := range c.indexes {
		if k, ok := idx.Key(doc); ok {
			keys = append(keys, k)
		}
	}
	return keys
}
