package record

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverflowStore(t *testing.T) {
	payload := []byte(strings.Repeat("graph property payload ", 20))

	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(compression.name(), func(t *testing.T) {
			s := NewOverflowStore(compression)

			id, err := s.Put(OverflowString, payload)
			require.NoError(t, err)

			got, err := s.Get(OverflowString, id)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload, got))
		})
	}

	t.Run("KindsAreSeparate", func(t *testing.T) {
		s := NewOverflowStore(CompressionNone)

		id, err := s.Put(OverflowString, []byte("abc"))
		require.NoError(t, err)

		_, err = s.Get(OverflowArray, id)
		assert.ErrorIs(t, err, ErrUnresolvedReference)
	})

	t.Run("MissingReference", func(t *testing.T) {
		s := NewOverflowStore(CompressionLZ4)
		_, err := s.Get(OverflowString, 12345)
		assert.ErrorIs(t, err, ErrUnresolvedReference)
	})

	t.Run("Delete", func(t *testing.T) {
		s := NewOverflowStore(CompressionZSTD)
		id, err := s.Put(OverflowArray, payload)
		require.NoError(t, err)

		s.Delete(OverflowArray, id)
		_, err = s.Get(OverflowArray, id)
		assert.ErrorIs(t, err, ErrUnresolvedReference)
	})

	t.Run("IncompressiblePayload", func(t *testing.T) {
		// Tiny payloads do not shrink; they must round-trip raw.
		s := NewOverflowStore(CompressionZSTD)
		id, err := s.Put(OverflowString, []byte{0x01})
		require.NoError(t, err)

		got, err := s.Get(OverflowString, id)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01}, got)
	})
}

func (c Compression) name() string {
	switch c {
	case CompressionLZ4:
		return "LZ4"
	case CompressionZSTD:
		return "ZSTD"
	default:
		return "None"
	}
}
