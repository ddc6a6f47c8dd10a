package storage

import (
	"encoding/binary"
	"fmt"
)

// Record wire format (version 1, little-endian throughout):
//
//	record  := version:u8 body
//	node    := id:i64 active:u8 labelCount:u32 label* propCount:u32 prop*
//	edge    := id:i64 active:u8 typeLen:u32 typeBytes source:i64 target:i64
//	           propCount:u32 prop*
//	label   := len:u32 bytes
//	prop    := keyLen:u32 keyBytes tag:u8 value
//	value   := i64            when tag == 0
//	         | len:u32 bytes  when tag == 1
//	         | u8              when tag == 2
//
// The version byte does not distinguish node from edge records; the record
// store tracks the kind through the indexes, and the boot scan recovers it
// by trial decoding (see DecodeRecord).
const recordVersion = 1

// writer accumulates a record body. It never fails; size limits are
// enforced by the record store against the page size.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)    { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32)  { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) i64(v int64)   { w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) }
func (w *writer) str(s string)  { w.u32(uint32(len(s))); w.buf = append(w.buf, s...) }
func (w *writer) active(b bool) { w.u8(boolByte(b)) }

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (w *writer) property(p Property) error {
	w.str(p.Key)
	w.u8(uint8(p.Value.Kind))
	switch p.Value.Kind {
	case KindInt64:
		w.i64(p.Value.Int)
	case KindString:
		w.str(p.Value.Str)
	case KindBool:
		w.u8(boolByte(p.Value.Bool))
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedKind, p.Value.Kind)
	}
	return nil
}

// reader consumes a record with strict bounds checking. Every read that
// would run past the buffer returns ErrMalformedRecord instead of
// panicking, so arbitrary page bytes are safe to feed in.
type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int) error {
	if r.off+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrMalformedRecord, n, r.off, len(r.buf)-r.off)
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) i64() (int64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.LittleEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *reader) property() (Property, error) {
	key, err := r.str()
	if err != nil {
		return Property{}, err
	}
	tag, err := r.u8()
	if err != nil {
		return Property{}, err
	}
	var v Value
	switch ValueKind(tag) {
	case KindInt64:
		i, err := r.i64()
		if err != nil {
			return Property{}, err
		}
		v = Int64Value(i)
	case KindString:
		s, err := r.str()
		if err != nil {
			return Property{}, err
		}
		v = StringValue(s)
	case KindBool:
		b, err := r.u8()
		if err != nil {
			return Property{}, err
		}
		v = BoolValue(b != 0)
	default:
		return Property{}, fmt.Errorf("%w: tag %d for key %q", ErrUnsupportedKind, tag, key)
	}
	return Property{Key: key, Value: v}, nil
}

// EncodeNode serializes a node record, version byte included.
func EncodeNode(n *Node) ([]byte, error) {
	w := &writer{}
	w.u8(recordVersion)
	w.i64(n.ID)
	w.active(n.Active)
	w.u32(uint32(len(n.Labels)))
	for _, l := range n.Labels {
		w.str(l)
	}
	w.u32(uint32(len(n.Properties)))
	for _, p := range n.Properties {
		if err := w.property(p); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

// EncodeEdge serializes an edge record, version byte included.
func EncodeEdge(e *Edge) ([]byte, error) {
	w := &writer{}
	w.u8(recordVersion)
	w.i64(e.ID)
	w.active(e.Active)
	w.str(e.Type)
	w.i64(e.Source)
	w.i64(e.Target)
	w.u32(uint32(len(e.Properties)))
	for _, p := range e.Properties {
		if err := w.property(p); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

// DecodeNode deserializes a node record from the start of data. Trailing
// bytes (page padding) are ignored.
func DecodeNode(data []byte) (*Node, error) {
	r, err := recordReader(data)
	if err != nil {
		return nil, err
	}
	n, _, err := decodeNodeBody(r)
	return n, err
}

// DecodeEdge deserializes an edge record from the start of data. Trailing
// bytes (page padding) are ignored.
func DecodeEdge(data []byte) (*Edge, error) {
	r, err := recordReader(data)
	if err != nil {
		return nil, err
	}
	e, _, err := decodeEdgeBody(r)
	return e, err
}

func recordReader(data []byte) (*reader, error) {
	r := &reader{buf: data}
	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	if version != recordVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return r, nil
}

func decodeNodeBody(r *reader) (*Node, int, error) {
	n := &Node{}
	var err error
	if n.ID, err = r.i64(); err != nil {
		return nil, 0, err
	}
	active, err := r.u8()
	if err != nil {
		return nil, 0, err
	}
	n.Active = active != 0
	labelCount, err := r.u32()
	if err != nil {
		return nil, 0, err
	}
	for i := uint32(0); i < labelCount; i++ {
		l, err := r.str()
		if err != nil {
			return nil, 0, err
		}
		n.Labels = append(n.Labels, l)
	}
	propCount, err := r.u32()
	if err != nil {
		return nil, 0, err
	}
	for i := uint32(0); i < propCount; i++ {
		p, err := r.property()
		if err != nil {
			return nil, 0, err
		}
		n.Properties = append(n.Properties, p)
	}
	return n, r.off, nil
}

func decodeEdgeBody(r *reader) (*Edge, int, error) {
	e := &Edge{}
	var err error
	if e.ID, err = r.i64(); err != nil {
		return nil, 0, err
	}
	active, err := r.u8()
	if err != nil {
		return nil, 0, err
	}
	e.Active = active != 0
	if e.Type, err = r.str(); err != nil {
		return nil, 0, err
	}
	if e.Source, err = r.i64(); err != nil {
		return nil, 0, err
	}
	if e.Target, err = r.i64(); err != nil {
		return nil, 0, err
	}
	propCount, err := r.u32()
	if err != nil {
		return nil, 0, err
	}
	for i := uint32(0); i < propCount; i++ {
		p, err := r.property()
		if err != nil {
			return nil, 0, err
		}
		e.Properties = append(e.Properties, p)
	}
	return e, r.off, nil
}

// DecodeRecord decodes a page of unknown kind, for the boot scan. The
// format has no kind discriminator, so both a node and an edge decode are
// attempted. A candidate is accepted only if the decode succeeds, the ID
// is positive (and, for edges, both endpoint IDs are positive), and every
// byte after the record is zero padding.
//
// Both decodes can pass those checks on the same page: an edge with a
// short type parses as a node whose first label length is assembled from
// the type bytes and the source ID's low-order bytes, and that garbage
// label swallows the record plus part of the padding, leaving a zero tail.
// The wrong parse always absorbs padding into a string field that way, so
// it ends strictly later than the parse that was actually written; when
// both candidates survive, the one with the smaller end offset wins.
//
// An all-zero page (allocated but never written) returns (nil, nil, nil).
func DecodeRecord(data []byte) (*Node, *Edge, error) {
	if allZero(data) {
		return nil, nil, nil
	}

	var (
		node    *Node
		nodeEnd int
		edge    *Edge
		edgeEnd int
	)
	if r, err := recordReader(data); err == nil {
		if n, end, err := decodeNodeBody(r); err == nil && n.ID > 0 && allZero(data[end:]) {
			node, nodeEnd = n, end
		}
	}
	if r, err := recordReader(data); err == nil {
		if e, end, err := decodeEdgeBody(r); err == nil && e.ID > 0 && e.Source > 0 && e.Target > 0 && allZero(data[end:]) {
			edge, edgeEnd = e, end
		}
	}

	switch {
	case node != nil && edge != nil:
		if edgeEnd < nodeEnd {
			return nil, edge, nil
		}
		return node, nil, nil
	case node != nil:
		return node, nil, nil
	case edge != nil:
		return nil, edge, nil
	}
	return nil, nil, fmt.Errorf("%w: page matches neither node nor edge layout", ErrMalformedRecord)
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
