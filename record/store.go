package record

import (
	"sort"
	"sync"

	"github.com/hupe1980/graphstore/values"
)

// MemoryChainStore is an in-memory chain store. It backs tests and the
// reference Store wiring; a page-cache backed implementation satisfies the
// same ChainStore interface.
//
// Safe for concurrent use. Record cursors obtained from it read snapshots of
// individual records, so a traversal observes concurrent deletes as
// not-in-use records rather than torn reads.
type MemoryChainStore struct {
	mu      sync.RWMutex
	records map[RecordID]PropertyRecord
	nextID  RecordID
}

// NewMemoryChainStore creates an empty chain store.
func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{
		records: make(map[RecordID]PropertyRecord),
	}
}

// Append writes the given blocks as a new chain of records, at most
// MaxBlocksPerRecord blocks per record, and returns the chain head.
// An empty block list yields NoNextRecord.
func (s *MemoryChainStore) Append(blocks []PropertyBlock) RecordID {
	if len(blocks) == 0 {
		return NoNextRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := NoNextRecord
	var prev RecordID
	for len(blocks) > 0 {
		n := min(len(blocks), MaxBlocksPerRecord)
		rec := PropertyRecord{
			ID:       s.nextID,
			InUse:    true,
			NextProp: NoNextRecord,
			Blocks:   append([]PropertyBlock(nil), blocks[:n]...),
		}
		s.nextID++
		blocks = blocks[n:]

		s.records[rec.ID] = rec
		if first == NoNextRecord {
			first = rec.ID
		} else {
			p := s.records[prev]
			p.NextProp = rec.ID
			s.records[prev] = p
		}
		prev = rec.ID
	}
	return first
}

// Load returns a copy of one record.
func (s *MemoryChainStore) Load(id RecordID) (PropertyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if ok {
		rec.Blocks = append([]PropertyBlock(nil), rec.Blocks...)
	}
	return rec, ok
}

// Delete marks one record not in use. The next pointer is kept so that
// in-flight traversals can still follow the chain past the deleted record.
func (s *MemoryChainStore) Delete(id RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.InUse = false
		s.records[id] = rec
	}
}

// DeleteChain marks every record of a chain not in use.
func (s *MemoryChainStore) DeleteChain(first RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := first; id != NoNextRecord; {
		rec, ok := s.records[id]
		if !ok {
			return
		}
		rec.InUse = false
		s.records[id] = rec
		id = rec.NextProp
	}
}

// NewRecordCursor implements ChainStore.
func (s *MemoryChainStore) NewRecordCursor() RecordCursor {
	return &memoryRecordCursor{store: s}
}

type memoryRecordCursor struct {
	store   *MemoryChainStore
	next    RecordID
	mode    LoadMode
	current PropertyRecord
}

func (c *memoryRecordCursor) Acquire(id RecordID, mode LoadMode) {
	c.next = id
	c.mode = mode
	c.current = PropertyRecord{NextProp: NoNextRecord}
}

func (c *memoryRecordCursor) Next() bool {
	if c.next == NoNextRecord {
		// Past the end of the chain. Keep the terminator visible through Get.
		c.current.NextProp = NoNextRecord
		return false
	}

	rec, ok := c.store.Load(c.next)
	if !ok {
		// Dangling next pointer. Surface a not-in-use terminator record so
		// the caller's skip loop ends cleanly.
		rec = PropertyRecord{ID: c.next, InUse: false, NextProp: NoNextRecord}
	}
	c.current = rec
	c.next = rec.NextProp

	if !rec.InUse && c.mode != LoadForce {
		c.next = NoNextRecord
		c.current.NextProp = NoNextRecord
		return false
	}
	return rec.InUse
}

func (c *memoryRecordCursor) Get() *PropertyRecord {
	return &c.current
}

func (c *memoryRecordCursor) Close() {
	c.current = PropertyRecord{NextProp: NoNextRecord}
	c.next = NoNextRecord
}

// EncodeProperties turns a property map into blocks ready for Append,
// spilling oversized strings and arrays into the overflow store. Keys are
// emitted in ascending order so chains are deterministic.
func EncodeProperties(props map[int]values.Value, overflow *OverflowStore) ([]PropertyBlock, error) {
	keys := make([]int, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	blocks := make([]PropertyBlock, 0, len(keys))
	for _, k := range keys {
		block, err := encodeBlock(k, props[k], overflow)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func encodeBlock(keyID int, v values.Value, overflow *OverflowStore) (PropertyBlock, error) {
	var kind OverflowKind
	switch v.Kind {
	case values.KindString:
		kind = OverflowString
	case values.KindArray:
		kind = OverflowArray
	default:
		return PropertyBlock{KeyID: keyID, Inline: v}, nil
	}

	payload, err := v.MarshalBinary()
	if err != nil {
		return PropertyBlock{}, err
	}
	if len(payload) <= InlineLimit {
		return PropertyBlock{KeyID: keyID, Inline: v}, nil
	}

	id, err := overflow.Put(kind, payload)
	if err != nil {
		return PropertyBlock{}, err
	}
	return PropertyBlock{KeyID: keyID, Overflow: kind, OverflowID: id}, nil
}
