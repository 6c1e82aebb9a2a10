package graphstore

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/record"
	"github.com/hupe1980/graphstore/values"
)

const lockStripes = 64

// lockTable hands out per-entity locks for property traversals and writes.
// Striped: entities sharing a stripe serialize against each other.
type lockTable struct {
	stripes [lockStripes]sync.Mutex
}

func (t *lockTable) acquire(entityID uint64) record.Lock {
	m := &t.stripes[entityID%lockStripes]
	m.Lock()
	return record.LockFunc(m.Unlock)
}

// Store wires the property chain store, the overflow store, the cursor pool
// and the registered secondary indexes into one engine facade.
type Store struct {
	chains   *record.MemoryChainStore
	overflow *record.OverflowStore
	cursors  *record.CursorPool
	locks    lockTable
	logger   *Logger

	mu       sync.RWMutex
	entities map[uint64]record.RecordID
	indexes  map[string]index.Accessor
}

// Open creates an empty store.
func Open(optFns ...Option) *Store {
	opts := options{
		compression: record.CompressionLZ4,
		logger:      NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	chains := record.NewMemoryChainStore()
	overflow := record.NewOverflowStore(opts.compression)
	return &Store{
		chains:   chains,
		overflow: overflow,
		cursors:  record.NewCursorPool(chains, overflow),
		logger:   opts.logger,
		entities: make(map[uint64]record.RecordID),
		indexes:  make(map[string]index.Accessor),
	}
}

// SetProperties replaces an entity's properties with a freshly written
// chain. The old chain, if any, is marked deleted; in-flight cursors keep
// reading it under the skip rule.
func (s *Store) SetProperties(entityID uint64, props map[int]values.Value) error {
	blocks, err := record.EncodeProperties(props, s.overflow)
	if err != nil {
		return translateError(err)
	}

	lock := s.locks.acquire(entityID)
	defer lock.Release()

	first := s.chains.Append(blocks)

	s.mu.Lock()
	old, had := s.entities[entityID]
	s.entities[entityID] = first
	s.mu.Unlock()

	if had {
		s.chains.DeleteChain(old)
	}
	s.logger.Debug("properties written", "entity", entityID, "chain", first, "count", len(props))
	return nil
}

// DeleteEntity removes an entity's property chain.
func (s *Store) DeleteEntity(entityID uint64) {
	lock := s.locks.acquire(entityID)
	defer lock.Release()

	s.mu.Lock()
	first, ok := s.entities[entityID]
	delete(s.entities, entityID)
	s.mu.Unlock()

	if ok {
		s.chains.DeleteChain(first)
	}
}

// PropertyCursor opens a pooled cursor over an entity's properties. The
// entity lock is held until the cursor's Close.
func (s *Store) PropertyCursor(entityID uint64) (*record.PropertyCursor, error) {
	s.mu.RLock()
	first, ok := s.entities[entityID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	lock := s.locks.acquire(entityID)
	return s.cursors.Acquire().Init(first, lock), nil
}

// Properties reads all of an entity's properties into a map.
func (s *Store) Properties(entityID uint64) (map[int]values.Value, error) {
	c, err := s.PropertyCursor(entityID)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	props := make(map[int]values.Value)
	for c.Next() {
		props[c.KeyID()] = c.Value()
	}
	if err := c.Err(); err != nil {
		return nil, translateError(err)
	}
	return props, nil
}

// RegisterIndex attaches an index accessor under a name.
func (s *Store) RegisterIndex(name string, accessor index.Accessor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[name]; ok {
		return ErrIndexExists
	}
	s.indexes[name] = accessor
	s.logger.Info("index registered", "name", name)
	return nil
}

// Index returns a registered accessor.
func (s *Store) Index(name string) (index.Accessor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accessor, ok := s.indexes[name]
	if !ok {
		return nil, ErrIndexNotFound
	}
	return accessor, nil
}

// ApplyIndexUpdates routes one batch of entry updates to a registered
// index through a single updater session.
func (s *Store) ApplyIndexUpdates(name string, updates []index.EntryUpdate) error {
	accessor, err := s.Index(name)
	if err != nil {
		return err
	}

	updater, err := accessor.NewUpdater(index.SessionOnline)
	if err != nil {
		return translateError(err)
	}

	var processErr error
	for _, update := range updates {
		if err := updater.Process(update); err != nil {
			processErr = err
			break
		}
	}
	if err := updater.Close(); err != nil && processErr == nil {
		processErr = err
	}
	return translateError(processErr)
}

// CheckConsistency runs the consistency scan of every registered index
// concurrently and returns the first failure.
func (s *Store) CheckConsistency(ctx context.Context) error {
	s.mu.RLock()
	accessors := make(map[string]index.Accessor, len(s.indexes))
	for name, accessor := range s.indexes {
		accessors[name] = accessor
	}
	s.mu.RUnlock()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for name, accessor := range accessors {
		g.Go(func() error {
			if err := accessor.ConsistencyCheck(ctx); err != nil {
				s.logger.Error("consistency check failed", "index", name, "error", err)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("consistency check passed", "indexes", len(accessors), "took", time.Since(start))
	return nil
}

// Close closes all registered index accessors.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, accessor := range s.indexes {
		if err := accessor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.indexes, name)
	}
	return firstErr
}
