// Package codec turns a store snapshot into the encrypted on-disk file and
// back. Serialization is a compact binary form with explicit type tags and
// length prefixes; encryption is ChaCha20 with an HMAC-SHA256 tag over
// header and ciphertext, verified before any byte is decrypted.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/olibuijr/docvault/internal/common"
	"github.com/olibuijr/docvault/internal/store"
)

// Value type tags in the binary payload. A null is a real tagged value,
// distinguishable from an absent key.
const (
	tagNull   byte = 0
	tagBool   byte = 1
	tagInt    byte = 2
	tagFloat  byte = 3
	tagString byte = 4
	tagArray  byte = 5
	tagObject byte = 6
)

// Encode serializes a snapshot: a u32 collection count followed by
// (name, doc count, [id, created_at, updated_at, field tree]) records.
// All integers are little-endian, all variable-length data is
// length-prefixed, so decoding never scans for delimiters.
func Encode(snap *store.Snapshot) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(snap.Collections)))
	for _, col := range snap.Collections {
		buf = appendString(buf, col.Name)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(col.Documents)))
		for _, doc := range col.Documents {
			buf = appendString(buf, doc.ID)
			buf = binary.LittleEndian.AppendUint64(buf, uint64(doc.CreatedAt))
			buf = binary.LittleEndian.AppendUint64(buf, uint64(doc.UpdatedAt))
			buf = appendObject(buf, doc.Fields)
		}
	}
	return buf
}

// Decode is the structural inverse of Encode. Any mismatch between a
// length prefix or type tag and the actual bytes fails with
// common.ErrCorruptFormat; there is no best-effort recovery.
func Decode(data []byte) (*store.Snapshot, error) {
	r := &reader{buf: data}

	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	snap := &store.Snapshot{}
	for i := uint32(0); i < count; i++ {
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		docCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		cs := store.CollectionSnapshot{Name: name}
		for j := uint32(0); j < docCount; j++ {
			doc, err := r.document()
			if err != nil {
				return nil, err
			}
			cs.Documents = append(cs.Documents, doc)
		}
		snap.Collections = append(snap.Collections, cs)
	}
	if r.pos != len(r.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", common.ErrCorruptFormat, len(r.buf)-r.pos)
	}
	return snap, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendObject(buf []byte, o *store.Object) []byte {
	keys := o.Keys()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		v, _ := o.Get(k)
		buf = appendString(buf, k)
		buf = appendValue(buf, v)
	}
	return buf
}

func appendValue(buf []byte, v store.Value) []byte {
	switch v.Kind() {
	case store.KindBool:
		b, _ := v.AsBool()
		buf = append(buf, tagBool)
		if b {
			return append(buf, 1)
		}
		return append(buf, 0)
	case store.KindInt:
		i, _ := v.AsInt()
		buf = append(buf, tagInt)
		return binary.LittleEndian.AppendUint64(buf, uint64(i))
	case store.KindFloat:
		f, _ := v.AsFloat()
		buf = append(buf, tagFloat)
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
	case store.KindString:
		s, _ := v.AsString()
		buf = append(buf, tagString)
		return appendString(buf, s)
	case store.KindArray:
		arr, _ := v.AsArray()
		buf = append(buf, tagArray)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(arr)))
		for _, e := range arr {
			buf = appendValue(buf, e)
		}
		return buf
	case store.KindObject:
		o, _ := v.AsObject()
		buf = append(buf, tagObject)
		return appendObject(buf, o)
	default:
		return append(buf, tagNull)
	}
}

// reader walks the payload, failing on any read past the end.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			common.ErrCorruptFormat, n, r.pos, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) string() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) document() (*store.Document, error) {
	id, err := r.string()
	if err != nil {
		return nil, err
	}
	created, err := r.u64()
	if err != nil {
		return nil, err
	}
	updated, err := r.u64()
	if err != nil {
		return nil, err
	}
	fields, err := r.object()
	if err != nil {
		return nil, err
	}
	return &store.Document{
		ID:        id,
		CreatedAt: int64(created),
		UpdatedAt: int64(updated),
		Fields:    fields,
	}, nil
}

func (r *reader) object() (*store.Object, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	o := store.NewObject()
	for i := uint32(0); i < count; i++ {
		k, err := r.string()
		if err != nil {
			return nil, err
		}
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		o.Set(k, v)
	}
	return o, nil
}

func (r *reader) value() (store.Value, error) {
	tb, err := r.take(1)
	if err != nil {
		return store.Value{}, err
	}
	switch tb[0] {
	case tagNull:
		return store.Null(), nil
	case tagBool:
		b, err := r.take(1)
		if err != nil {
			return store.Value{}, err
		}
		return store.Bool(b[0] != 0), nil
	case tagInt:
		u, err := r.u64()
		if err != nil {
			return store.Value{}, err
		}
		return store.Int(int64(u)), nil
	case tagFloat:
		u, err := r.u64()
		if err != nil {
			return store.Value{}, err
		}
		return store.Float(math.Float64frombits(u)), nil
	case tagString:
		s, err := r.string()
		if err != nil {
			return store.Value{}, err
		}
		return store.String(s), nil
	case tagArray:
		count, err := r.u32()
		if err != nil {
			return store.Value{}, err
		}
		arr := make([]store.Value, 0, minInt(int(count), 1024))
		for i := uint32(0); i < count; i++ {
			v, err := r.value()
			if err != nil {
				return store.Value{}, err
			}
			arr = append(arr, v)
		}
		return store.Array(arr...), nil
	case tagObject:
		o, err := r.object()
		if err != nil {
			return store.Value{}, err
		}
		return store.Obj(o), nil
	default:
		return store.Value{}, fmt.Errorf("%w: unknown value tag 0x%02x at offset %d",
			common.ErrCorruptFormat, tb[0], r.pos-1)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
