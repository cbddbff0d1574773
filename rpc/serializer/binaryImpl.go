package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/ValentinKolb/dList/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
//
// Layout: 1 byte MsgType | 4 bytes flags | present fields in flag order.
// Strings and byte slices are prefixed with their length (uint32), integers are
// written as 8 bytes, lists are prefixed with their element count (uint32).
// Boolean fields are encoded in the flags only.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey       uint32 = 1 << 0
	hasKeys      uint32 = 1 << 1
	hasDest      uint32 = 1 << 2
	hasValue     uint32 = 1 << 3
	hasPivot     uint32 = 1 << 4
	hasIndex     uint32 = 1 << 5
	hasStop      uint32 = 1 << 6
	hasCount     uint32 = 1 << 7
	isAfter      uint32 = 1 << 8
	hasTimeoutMs uint32 = 1 << 9
	hasCallID    uint32 = 1 << 10
	hasValues    uint32 = 1 << 11
	hasLength    uint32 = 1 << 12
	isOk         uint32 = 1 << 13
	hasErr       uint32 = 1 << 14
	hasErrCode   uint32 = 1 << 15
	hasMeta      uint32 = 1 << 16
)

const headerSize = 5 // MsgType + flags

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binWriter{buf: make([]byte, b.sizeBytes(msg)), pos: headerSize}

	// Write message type
	w.buf[0] = byte(msg.MsgType)

	var flags uint32 = 0

	if msg.Key != "" {
		flags |= hasKey
		w.putString(msg.Key)
	}
	if msg.Keys != nil {
		flags |= hasKeys
		w.putUint32(uint32(len(msg.Keys)))
		for _, key := range msg.Keys {
			w.putString(key)
		}
	}
	if msg.Dest != "" {
		flags |= hasDest
		w.putString(msg.Dest)
	}
	if msg.Value != nil {
		flags |= hasValue
		w.putBytes(msg.Value)
	}
	if msg.Pivot != nil {
		flags |= hasPivot
		w.putBytes(msg.Pivot)
	}
	if msg.Index != 0 {
		flags |= hasIndex
		w.putInt64(msg.Index)
	}
	if msg.Stop != 0 {
		flags |= hasStop
		w.putInt64(msg.Stop)
	}
	if msg.Count != 0 {
		flags |= hasCount
		w.putInt64(msg.Count)
	}
	if msg.After {
		flags |= isAfter
	}
	if msg.TimeoutMs != 0 {
		flags |= hasTimeoutMs
		w.putInt64(msg.TimeoutMs)
	}
	if msg.CallID != "" {
		flags |= hasCallID
		w.putString(msg.CallID)
	}
	if msg.Values != nil {
		flags |= hasValues
		w.putUint32(uint32(len(msg.Values)))
		for _, v := range msg.Values {
			w.putBytes(v)
		}
	}
	if msg.Length != 0 {
		flags |= hasLength
		w.putInt64(msg.Length)
	}
	if msg.Ok {
		flags |= isOk
	}
	if msg.Err != "" {
		flags |= hasErr
		w.putString(msg.Err)
	}
	if msg.ErrCode != store.RetCSuccess {
		flags |= hasErrCode
		w.putInt64(int64(msg.ErrCode))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.putBytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint32(w.buf[1:headerSize], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint32(data[1:headerSize])
	r := binReader{data: data, pos: headerSize}

	if flags&hasKey != 0 {
		msg.Key = r.string("key")
	}
	if flags&hasKeys != 0 {
		n := r.count("keys")
		msg.Keys = make([]string, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Keys = append(msg.Keys, r.string("keys"))
		}
	}
	if flags&hasDest != 0 {
		msg.Dest = r.string("dest")
	}
	if flags&hasValue != 0 {
		msg.Value = r.bytes("value")
	}
	if flags&hasPivot != 0 {
		msg.Pivot = r.bytes("pivot")
	}
	if flags&hasIndex != 0 {
		msg.Index = r.int64("index")
	}
	if flags&hasStop != 0 {
		msg.Stop = r.int64("stop")
	}
	if flags&hasCount != 0 {
		msg.Count = r.int64("count")
	}
	msg.After = flags&isAfter != 0
	if flags&hasTimeoutMs != 0 {
		msg.TimeoutMs = r.int64("timeout")
	}
	if flags&hasCallID != 0 {
		msg.CallID = r.string("call id")
	}
	if flags&hasValues != 0 {
		n := r.count("values")
		msg.Values = make([][]byte, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Values = append(msg.Values, r.bytes("values"))
		}
	}
	if flags&hasLength != 0 {
		msg.Length = r.int64("length")
	}
	msg.Ok = flags&isOk != 0
	if flags&hasErr != 0 {
		msg.Err = r.string("error")
	}
	if flags&hasErrCode != 0 {
		msg.ErrCode = store.RetCode(r.int64("error code"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Keys != nil {
		size += 4
		for _, key := range msg.Keys {
			size += 4 + len(key)
		}
	}
	if msg.Dest != "" {
		size += 4 + len(msg.Dest)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Pivot != nil {
		size += 4 + len(msg.Pivot)
	}
	for _, n := range []int64{msg.Index, msg.Stop, msg.Count, msg.TimeoutMs, msg.Length, int64(msg.ErrCode)} {
		if n != 0 {
			size += 8
		}
	}
	if msg.CallID != "" {
		size += 4 + len(msg.CallID)
	}
	if msg.Values != nil {
		size += 4
		for _, v := range msg.Values {
			size += 4 + len(v)
		}
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// binWriter writes fields into a buffer that was sized with sizeBytes
type binWriter struct {
	buf []byte
	pos int
}

func (w *binWriter) putUint32(n uint32) {
	binary.BigEndian.PutUint32(w.buf[w.pos:w.pos+4], n)
	w.pos += 4
}

func (w *binWriter) putInt64(n int64) {
	binary.BigEndian.PutUint64(w.buf[w.pos:w.pos+8], uint64(n))
	w.pos += 8
}

func (w *binWriter) putBytes(b []byte) {
	w.putUint32(uint32(len(b)))
	w.pos += copy(w.buf[w.pos:], b)
}

func (w *binWriter) putString(s string) {
	w.putUint32(uint32(len(s)))
	w.pos += copy(w.buf[w.pos:], s)
}

// binReader reads fields and remembers the first error, later reads are no-ops
type binReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *binReader) uint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	n := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return n
}

// count reads a list length and checks that the list can fit into the remaining data
func (r *binReader) count(field string) int {
	n := int(r.uint32(field))
	if r.err == nil && n*4 > len(r.data)-r.pos {
		r.err = fmt.Errorf("data too short for %s", field)
		return 0
	}
	return n
}

func (r *binReader) int64(field string) int64 {
	if !r.need(8, field) {
		return 0
	}
	n := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return int64(n)
}

// bytes returns a copy of the next length prefixed byte slice (never nil)
func (r *binReader) bytes(field string) []byte {
	n := int(r.uint32(field))
	if !r.need(n, field) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}

func (r *binReader) string(field string) string {
	n := int(r.uint32(field))
	if !r.need(n, field) {
		return ""
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s
}
