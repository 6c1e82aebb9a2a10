package record

import (
	"sync"

	"github.com/hupe1980/graphstore/values"
)

// PropertyCursor streams all properties of one entity by walking its record
// chain and the blocks within each record.
//
// Instances come from a CursorPool and go back to it on Close; an instance
// is used by one goroutine at a time, pooling exists to avoid allocation on
// the read hot path, not to share cursors across threads.
type PropertyCursor struct {
	pool    *CursorPool
	payload *BlockDecoder
	records RecordCursor

	lock Lock
	err  error
}

// Init binds the cursor to a traversal starting at the given record id. The
// lock is caller-supplied and released exactly once on Close.
func (c *PropertyCursor) Init(first RecordID, lock Lock) *PropertyCursor {
	c.lock = lock
	c.err = nil
	c.records.Acquire(first, LoadForce)
	c.payload.Clear()
	return c
}

// Next advances to the next property. It returns false when the chain is
// exhausted or a decode failure occurred; check Err to tell the two apart.
func (c *PropertyCursor) Next() bool {
	if c.err != nil {
		return false
	}

	// Are there more properties in the record we are positioned on?
	if c.payload.Next() {
		return true
	}
	if err := c.payload.Err(); err != nil {
		c.err = err
		return false
	}

	// No, continue down the chain and hunt for more.
	for {
		if c.records.Next() {
			rec := c.records.Get()
			c.payload.Init(rec.Blocks, len(rec.Blocks))
			if c.payload.Next() {
				return true
			}
			if err := c.payload.Err(); err != nil {
				c.err = err
				return false
			}
		} else if c.records.Get().NextProp == NoNextRecord {
			// No more records in this chain, i.e. no more properties.
			return false
		}

		// This record is not in use, likely a concurrent delete.
		// Continue to the next record in the chain and try there.
	}
}

// KeyID returns the property key id of the current property.
func (c *PropertyCursor) KeyID() int { return c.payload.KeyID() }

// Value returns the value of the current property.
func (c *PropertyCursor) Value() values.Value { return c.payload.Value() }

// Err returns the decode error that terminated the traversal, if any. Read
// it before Close; Close hands the instance back to the pool and a new
// borrower may re-Init it at any point after.
func (c *PropertyCursor) Err() error { return c.err }

// Close ends the traversal, returns the cursor to its pool and releases the
// bound lock. The lock release happens unconditionally, even if the body
// failed. The caller must not touch the cursor afterwards.
func (c *PropertyCursor) Close() {
	defer func() {
		lock := c.lock
		c.lock = nil
		if lock != nil {
			lock.Release()
		}
	}()

	c.payload.Clear()
	c.records.Close()
	c.pool.put(c)
}

// CursorPool is a free list of PropertyCursor instances. Acquire and the
// release inside Close are safe to call from multiple goroutines; each
// individual cursor stays single-threaded between Acquire and Close.
type CursorPool struct {
	pool sync.Pool
}

// NewCursorPool creates a pool producing cursors bound to the given chain
// and overflow stores.
func NewCursorPool(chains ChainStore, overflow *OverflowStore) *CursorPool {
	p := &CursorPool{}
	p.pool.New = func() any {
		return &PropertyCursor{
			pool:    p,
			payload: NewBlockDecoder(overflow),
			records: chains.NewRecordCursor(),
		}
	}
	return p
}

// Acquire takes a cursor from the pool. The caller must Init it before use
// and must not touch it again after Close.
func (p *CursorPool) Acquire() *PropertyCursor {
	return p.pool.Get().(*PropertyCursor)
}

func (p *CursorPool) put(c *PropertyCursor) {
	p.pool.Put(c)
}
