// Package badger stores todos in an embedded Badger database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/todo"
)

const (
	todoPrefix  = "todo/"
	sequenceKey = "seq/todo"
	gcInterval  = time.Minute
)

// Config controls where the database lives.
type Config struct {
	Dir string
	// InMemory keeps everything in RAM; Dir is ignored.
	InMemory bool
	Logger   *zap.Logger
}

type record struct {
	Seq  uint64    `json:"seq"`
	Todo todo.Todo `json:"todo"`
}

// TodoStore implements todo.Store on Badger. Values are JSON records keyed
// by todo id; a Badger sequence keeps creation order.
type TodoStore struct {
	db       *badger.DB
	seq      *badger.Sequence
	logger   *zap.Logger
	stop     chan struct{}
	wg       sync.WaitGroup
	closeErr error
	once     sync.Once
}

// Open opens (or creates) the database.
func Open(cfg Config) (*TodoStore, error) {
	if !cfg.InMemory && strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("badger directory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("badger")

	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(dbLogger{logger: logger}).
		WithLoggingLevel(badger.WARNING)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open todo sequence: %w", err)
	}

	s := &TodoStore{db: db, seq: seq, logger: logger, stop: make(chan struct{})}
	if !cfg.InMemory {
		s.wg.Add(1)
		go s.collectGarbage()
	}
	return s, nil
}

func (s *TodoStore) collectGarbage() {
	defer s.wg.Done()
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			lsm, vlog := s.db.Size()
			if lsm > 8<<20 || vlog > 32<<20 {
				if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn("value log gc failed", zap.Error(err))
				}
			}
		}
	}
}

// Close stops background work and closes the database.
func (s *TodoStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		if err := s.seq.Release(); err != nil {
			s.closeErr = fmt.Errorf("release sequence: %w", err)
		}
		if err := s.db.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("close badger: %w", err)
		}
	})
	return s.closeErr
}

// List returns todos in creation order.
func (s *TodoStore) List(_ context.Context) ([]todo.Todo, error) {
	var recs []record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(todoPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec record
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	slices.SortFunc(recs, func(a, b record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]todo.Todo, len(recs))
	for i, rec := range recs {
		out[i] = rec.Todo
	}
	return out, nil
}

// Get fetches a todo by id.
func (s *TodoStore) Get(_ context.Context, id string) (todo.Todo, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return todo.Todo{}, err
	}
	return rec.Todo, nil
}

// Create stores a new todo.
func (s *TodoStore) Create(_ context.Context, t todo.Todo) error {
	seq, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(t.ID)); err == nil {
			return fmt.Errorf("create %s: %w", t.ID, todo.ErrAlreadyExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("lookup %s: %w", t.ID, err)
		}
		return putRecord(txn, record{Seq: seq, Todo: t})
	})
}

// Update replaces an existing todo and keeps its position.
func (s *TodoStore) Update(_ context.Context, t todo.Todo) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, t.ID)
		if err != nil {
			return err
		}
		rec.Todo = t
		return putRecord(txn, rec)
	})
}

// Delete removes a todo.
func (s *TodoStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getRecord(txn, id); err != nil {
			return err
		}
		if err := txn.Delete(key(id)); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		return nil
	})
}

func key(id string) []byte {
	return []byte(todoPrefix + id)
}

func getRecord(txn *badger.Txn, id string) (record, error) {
	item, err := txn.Get(key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, todo.ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("get %s: %w", id, err)
	}
	var rec record
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
		return record{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return rec, nil
}

func putRecord(txn *badger.Txn, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Todo.ID, err)
	}
	if err := txn.Set(key(rec.Todo.ID), data); err != nil {
		return fmt.Errorf("set %s: %w", rec.Todo.ID, err)
	}
	return nil
}
