package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"github.com/zeusync/enginekit/pkg/encoding"
)

// DumpMsgPack encodes n in the msgpack binary format. Object key order is
// kept and floats are always written as doubles, so integers and floats
// stay distinguishable.
func DumpMsgPack(n *Node) ([]byte, error) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	enc := msgpack.NewEncoder(buf)
	if err := encodeMsgPack(enc, n); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func encodeMsgPack(enc *msgpack.Encoder, n *Node) error {
	switch n.Kind() {
	case KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(n.b)
	case KindInt:
		return enc.EncodeInt(n.i)
	case KindFloat:
		return enc.EncodeFloat64(n.f)
	case KindString:
		return enc.EncodeString(n.s)
	case KindArray:
		if err := enc.EncodeArrayLen(len(n.values)); err != nil {
			return err
		}
		for _, child := range n.values {
			if err := encodeMsgPack(enc, child); err != nil {
				return err
			}
		}
	case KindObject:
		if err := enc.EncodeMapLen(len(n.keys)); err != nil {
			return err
		}
		for i, key := range n.keys {
			if err := enc.EncodeString(key); err != nil {
				return err
			}
			if err := encodeMsgPack(enc, n.values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseMsgPack decodes a msgpack buffer produced by DumpMsgPack or any
// encoder using string or integer map keys.
func ParseMsgPack(data []byte) (*Node, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	n, err := decodeMsgPack(dec)
	offset := int64(len(data) - r.Len())
	if err != nil {
		return nil, &ParseError{Format: encoding.FormatMsgPack, Offset: offset, Err: err}
	}
	if r.Len() > 0 {
		return nil, &ParseError{Format: encoding.FormatMsgPack, Offset: offset, Err: ErrTrailingData}
	}
	return n, nil
}

func decodeMsgPack(dec *msgpack.Decoder) (*Node, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case c == msgpcode.Nil:
		return Null(), dec.DecodeNil()
	case c == msgpcode.True || c == msgpcode.False:
		b, err := dec.DecodeBool()
		return NewBool(b), err
	case c == msgpcode.Uint64:
		u, err := dec.DecodeUint64()
		if err != nil {
			return nil, err
		}
		if u > math.MaxInt64 {
			return NewFloat(float64(u)), nil
		}
		return NewInt(int64(u)), nil
	case msgpcode.IsFixedNum(c), c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32,
		c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		i, err := dec.DecodeInt64()
		return NewInt(i), err
	case c == msgpcode.Float || c == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		return NewFloat(f), err
	case msgpcode.IsString(c), msgpcode.IsBin(c):
		s, err := dec.DecodeString()
		return NewString(s), err
	case msgpcode.IsFixedArray(c), c == msgpcode.Array16, c == msgpcode.Array32:
		size, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		arr := NewArray()
		for range size {
			child, err := decodeMsgPack(dec)
			if err != nil {
				return nil, err
			}
			arr.Append(child)
		}
		return arr, nil
	case msgpcode.IsFixedMap(c), c == msgpcode.Map16, c == msgpcode.Map32:
		size, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		obj := NewObject()
		for range size {
			key, err := decodeMsgPackKey(dec)
			if err != nil {
				return nil, err
			}
			child, err := decodeMsgPack(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, child)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported msgpack code 0x%02x", c)
}

func decodeMsgPackKey(dec *msgpack.Decoder) (string, error) {
	key, err := decodeMsgPack(dec)
	if err != nil {
		return "", err
	}
	switch key.Kind() {
	case KindString:
		return key.s, nil
	case KindInt:
		return strconv.FormatInt(key.i, 10), nil
	}
	return "", fmt.Errorf("unsupported map key of kind %s", key.Kind())
}
