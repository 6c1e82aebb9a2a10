package values

import (
	"encoding/binary"
	"errors"
	"math"
)

// MarshalBinary implements encoding.BinaryMarshaler.
// It uses a compact binary format used for overflow-store payloads.
func (v Value) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 16)
	return appendValue(buf, v)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *Value) UnmarshalBinary(data []byte) error {
	val, rest, err := parseValue(data)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errors.New("trailing bytes after value")
	}
	*v = val
	return nil
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case KindNull:
		// kind byte only
	case KindInt, KindTemporal:
		buf = binary.AppendVarint(buf, v.I64)
	case KindFloat:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.F64))
	case KindString:
		buf = binary.AppendUvarint(buf, uint64(len(v.S)))
		buf = append(buf, v.S...)
	case KindBool:
		if v.B {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindPoint:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.P[0]))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.P[1]))
	case KindArray:
		buf = binary.AppendUvarint(buf, uint64(len(v.A)))
		for _, elem := range v.A {
			var err error
			buf, err = appendValue(buf, elem)
			if err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("cannot encode invalid value")
	}
	return buf, nil
}

func parseValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return Value{}, nil, errors.New("short buffer for value kind")
	}
	kind := Kind(data[0])
	data = data[1:]

	switch kind {
	case KindNull:
		return Null, data, nil
	case KindInt, KindTemporal:
		i, n := binary.Varint(data)
		if n <= 0 {
			return Value{}, nil, errors.New("invalid int value")
		}
		return Value{Kind: kind, I64: i}, data[n:], nil
	case KindFloat:
		if len(data) < 8 {
			return Value{}, nil, errors.New("short buffer for float value")
		}
		f := math.Float64frombits(binary.LittleEndian.Uint64(data))
		return Float(f), data[8:], nil
	case KindString:
		sLen, n := binary.Uvarint(data)
		if n <= 0 {
			return Value{}, nil, errors.New("invalid string length")
		}
		data = data[n:]
		if uint64(len(data)) < sLen {
			return Value{}, nil, errors.New("short buffer for string value")
		}
		return String(string(data[:sLen])), data[sLen:], nil
	case KindBool:
		if len(data) < 1 {
			return Value{}, nil, errors.New("short buffer for bool value")
		}
		return Bool(data[0] != 0), data[1:], nil
	case KindPoint:
		if len(data) < 16 {
			return Value{}, nil, errors.New("short buffer for point value")
		}
		x := math.Float64frombits(binary.LittleEndian.Uint64(data))
		y := math.Float64frombits(binary.LittleEndian.Uint64(data[8:]))
		return Point(x, y), data[16:], nil
	case KindArray:
		count, n := binary.Uvarint(data)
		if n <= 0 {
			return Value{}, nil, errors.New("invalid array length")
		}
		data = data[n:]
		elems := make([]Value, 0, count)
		for range count {
			elem, rest, err := parseValue(data)
			if err != nil {
				return Value{}, nil, err
			}
			elems = append(elems, elem)
			data = rest
		}
		return Value{Kind: KindArray, A: elems}, data, nil
	default:
		return Value{}, nil, errors.New("unknown value kind")
	}
}
