package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnresolvedReference is returned when an overflow reference points at a
// payload that does not exist. This is fatal to the traversal that hit it.
var ErrUnresolvedReference = errors.New("unresolved overflow reference")

// Compression selects the block compression applied to overflow payloads.
type Compression uint8

const (
	// CompressionNone stores payloads uncompressed.
	CompressionNone Compression = iota
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD
)

// ZSTD encoder/decoder pools, shared across overflow stores.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// OverflowStore holds string and array payloads too large to inline in a
// property block. Payloads are immutable once written; references held by
// blocks are weak (id + store kind).
//
// Safe for concurrent use.
type OverflowStore struct {
	mu          sync.RWMutex
	compression Compression
	nextID      uint64
	strings     map[uint64][]byte
	arrays      map[uint64][]byte
}

// NewOverflowStore creates an overflow store using the given compression.
func NewOverflowStore(compression Compression) *OverflowStore {
	return &OverflowStore{
		compression: compression,
		nextID:      1,
		strings:     make(map[uint64][]byte),
		arrays:      make(map[uint64][]byte),
	}
}

// Put stores one payload and returns its reference id.
func (s *OverflowStore) Put(kind OverflowKind, payload []byte) (uint64, error) {
	block, err := compressBlock(payload, s.compression)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	switch kind {
	case OverflowString:
		s.strings[id] = block
	case OverflowArray:
		s.arrays[id] = block
	default:
		return 0, fmt.Errorf("invalid overflow kind %d", kind)
	}
	return id, nil
}

// Get resolves one reference. A missing id yields ErrUnresolvedReference.
func (s *OverflowStore) Get(kind OverflowKind, id uint64) ([]byte, error) {
	s.mu.RLock()
	var block []byte
	var ok bool
	switch kind {
	case OverflowString:
		block, ok = s.strings[id]
	case OverflowArray:
		block, ok = s.arrays[id]
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: kind %d id %d", ErrUnresolvedReference, kind, id)
	}
	return decompressBlock(block, s.compression)
}

// Delete removes one payload. Cursors already holding a reference will fail
// their traversal; that is the contract for concurrent overflow reclaim.
func (s *OverflowStore) Delete(kind OverflowKind, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case OverflowString:
		delete(s.strings, id)
	case OverflowArray:
		delete(s.arrays, id)
	}
}

const blockHeaderSize = 4

// compressBlock prefixes the payload with its uncompressed size and applies
// the selected compression. If compression does not shrink the payload it is
// stored raw, signalled by an uncompressed size of zero.
func compressBlock(data []byte, compression Compression) ([]byte, error) {
	if compression == CompressionNone {
		out := make([]byte, blockHeaderSize+len(data))
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	var compressed []byte
	switch compression {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("invalid compression %d", compression)
	}

	if len(compressed) == 0 || len(compressed) >= len(data) {
		out := make([]byte, blockHeaderSize+len(data))
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out, uint32(len(data)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

func decompressBlock(block []byte, compression Compression) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, errors.New("short overflow block")
	}
	uncompressedSize := binary.LittleEndian.Uint32(block)
	data := block[blockHeaderSize:]

	// Zero size means the payload was stored raw.
	if uncompressedSize == 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	switch compression {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out[:n], nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compressed block but compression is %d", compression)
	}
}
