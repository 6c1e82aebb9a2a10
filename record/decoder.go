package record

import (
	"fmt"

	"github.com/hupe1980/graphstore/values"
)

// BlockDecoder decodes the property blocks of one record into (key, value)
// pairs, following overflow references through an OverflowStore.
//
// A decoder is re-initializable without allocation; the property cursor owns
// one for the lifetime of a traversal. Not safe for concurrent use.
type BlockDecoder struct {
	overflow *OverflowStore

	blocks []PropertyBlock
	n      int
	pos    int

	keyID int
	value values.Value
	err   error
}

// NewBlockDecoder creates a decoder resolving overflow references through
// the given store.
func NewBlockDecoder(overflow *OverflowStore) *BlockDecoder {
	return &BlockDecoder{overflow: overflow}
}

// Init positions the decoder over the first n blocks of a record.
func (d *BlockDecoder) Init(blocks []PropertyBlock, n int) {
	d.blocks = blocks
	d.n = n
	d.pos = 0
	d.err = nil
}

// Next advances to the next block. It returns false when the blocks are
// exhausted or decoding failed; the latter is distinguishable through Err
// and is fatal for the traversal.
func (d *BlockDecoder) Next() bool {
	if d.err != nil {
		return false
	}
	if d.pos >= d.n {
		return false
	}

	block := d.blocks[d.pos]
	d.pos++

	v, err := d.decode(block)
	if err != nil {
		d.err = err
		return false
	}
	d.keyID = block.KeyID
	d.value = v
	return true
}

// KeyID returns the property key id of the current block.
func (d *BlockDecoder) KeyID() int { return d.keyID }

// Value returns the decoded value of the current block.
func (d *BlockDecoder) Value() values.Value { return d.value }

// Err returns the decode error that stopped the last Next call, if any.
func (d *BlockDecoder) Err() error { return d.err }

// Clear resets the decoder to an unpositioned state.
func (d *BlockDecoder) Clear() {
	d.blocks = nil
	d.n = 0
	d.pos = 0
	d.keyID = 0
	d.value = values.Value{}
	d.err = nil
}

func (d *BlockDecoder) decode(block PropertyBlock) (values.Value, error) {
	if block.Overflow == OverflowNone {
		return block.Inline, nil
	}

	payload, err := d.overflow.Get(block.Overflow, block.OverflowID)
	if err != nil {
		return values.Value{}, fmt.Errorf("property key %d: %w", block.KeyID, err)
	}

	var v values.Value
	if err := v.UnmarshalBinary(payload); err != nil {
		return values.Value{}, fmt.Errorf("property key %d: decode overflow %d: %w", block.KeyID, block.OverflowID, err)
	}
	return v, nil
}
