package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dList/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	Key       string   `json:"key,omitempty"`        // Source key of all single key commands
	Keys      []string `json:"keys,omitempty"`       // Candidate keys of blocking pops
	Dest      string   `json:"dest,omitempty"`       // Destination key of moves
	Value     []byte   `json:"value,omitempty"`      // Pushed / set / inserted / matched value, popped value (response)
	Pivot     []byte   `json:"pivot,omitempty"`      // Pivot of linsert
	Index     int64    `json:"index,omitempty"`      // Index of lindex / lset, start of lrange
	Stop      int64    `json:"stop,omitempty"`       // Stop of lrange
	Count     int64    `json:"count,omitempty"`      // Count of lrem
	After     bool     `json:"after,omitempty"`      // Position of linsert (false = before)
	TimeoutMs int64    `json:"timeout_ms,omitempty"` // Timeout of blocking commands (0 = block indefinitely)
	CallID    string   `json:"call_id,omitempty"`    // Identifies a blocking call so it can be cancelled

	// Response only fields
	Values  [][]byte      `json:"values,omitempty"`   // Used for: lrange responses
	Length  int64         `json:"length,omitempty"`   // Used for: push, llen and lrem responses
	Ok      bool          `json:"ok,omitempty"`       // false = no result
	Err     string        `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	ErrCode store.RetCode `json:"err_code,omitempty"` // Return code of the error

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: info responses (json encoded db.DatabaseInfo)
}

// Error reconstructs the store error carried by a response (nil if there is none)
func (m *Message) Error() error {
	if m.Err == "" && m.ErrCode == store.RetCSuccess {
		return nil
	}
	code := m.ErrCode
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Request Factory Functions
// --------------------------------------------------------------------------

// NewPushRequest creates a new lpush, rpush, lpushx or rpushx request
func NewPushRequest(t MessageType, key string, value []byte) *Message {
	return &Message{
		MsgType: t,
		Key:     key,
		Value:   value,
	}
}

// NewKeyRequest creates a new request that only needs a key (lpop, rpop, llen)
func NewKeyRequest(t MessageType, key string) *Message {
	return &Message{
		MsgType: t,
		Key:     key,
	}
}

// NewRangeRequest creates a new lrange request
func NewRangeRequest(key string, start, stop int) *Message {
	return &Message{
		MsgType: MsgTLRange,
		Key:     key,
		Index:   int64(start),
		Stop:    int64(stop),
	}
}

// NewIndexRequest creates a new lindex request
func NewIndexRequest(key string, index int) *Message {
	return &Message{
		MsgType: MsgTLIndex,
		Key:     key,
		Index:   int64(index),
	}
}

// NewSetRequest creates a new lset request
func NewSetRequest(key string, index int, value []byte) *Message {
	return &Message{
		MsgType: MsgTLSet,
		Key:     key,
		Index:   int64(index),
		Value:   value,
	}
}

// NewInsertRequest creates a new linsert request
func NewInsertRequest(key string, pivot, value []byte, pos store.Position) *Message {
	return &Message{
		MsgType: MsgTLInsert,
		Key:     key,
		Pivot:   pivot,
		Value:   value,
		After:   pos == store.PositionAfter,
	}
}

// NewRemoveRequest creates a new lrem request
func NewRemoveRequest(key string, value []byte, count int) *Message {
	return &Message{
		MsgType: MsgTLRem,
		Key:     key,
		Value:   value,
		Count:   int64(count),
	}
}

// NewMoveRequest creates a new rpoplpush request
func NewMoveRequest(src, dst string) *Message {
	return &Message{
		MsgType: MsgTRPopLPush,
		Key:     src,
		Dest:    dst,
	}
}

// NewBlockingPopRequest creates a new blpop or brpop request
func NewBlockingPopRequest(t MessageType, keys []string, timeoutMs int64, callID string) *Message {
	return &Message{
		MsgType:   t,
		Keys:      keys,
		TimeoutMs: timeoutMs,
		CallID:    callID,
	}
}

// NewBlockingMoveRequest creates a new brpoplpush request
func NewBlockingMoveRequest(src, dst string, timeoutMs int64, callID string) *Message {
	return &Message{
		MsgType:   MsgTBRPopLPush,
		Key:       src,
		Dest:      dst,
		TimeoutMs: timeoutMs,
		CallID:    callID,
	}
}

// NewCancelRequest creates a request that cancels the blocking call with the given id
func NewCancelRequest(callID string) *Message {
	return &Message{
		MsgType: MsgTCancel,
		CallID:  callID,
	}
}

// NewTypeRequest creates a request without arguments (flush, info)
func NewTypeRequest(t MessageType) *Message {
	return &Message{
		MsgType: t,
	}
}

// NewCustomRequest creates a new custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// --------------------------------------------------------------------------
// Response Factory Functions
// --------------------------------------------------------------------------

// setErr stores err (if any) in the message
func (m *Message) setErr(err error) *Message {
	if err != nil {
		m.Err = err.Error()
		m.ErrCode = store.CodeOf(err)
		var e *store.Error
		if errors.As(err, &e) {
			m.Err = e.Msg
		}
	}
	return m
}

// NewLengthResponse creates a response carrying a length or count
func NewLengthResponse(t MessageType, n int, err error) *Message {
	return (&Message{
		MsgType: t,
		Length:  int64(n),
	}).setErr(err)
}

// NewValueResponse creates a response carrying an optional value
func NewValueResponse(t MessageType, value []byte, ok bool, err error) *Message {
	return (&Message{
		MsgType: t,
		Value:   value,
		Ok:      ok,
	}).setErr(err)
}

// NewKeyValueResponse creates a blocking pop response carrying the key the value was taken from
func NewKeyValueResponse(t MessageType, key string, value []byte, ok bool, err error) *Message {
	return (&Message{
		MsgType: t,
		Key:     key,
		Value:   value,
		Ok:      ok,
	}).setErr(err)
}

// NewValuesResponse creates an lrange response
func NewValuesResponse(values [][]byte, err error) *Message {
	return (&Message{
		MsgType: MsgTLRange,
		Values:  values,
	}).setErr(err)
}

// NewOkResponse creates a response that only carries success or failure
func NewOkResponse(t MessageType, ok bool, err error) *Message {
	return (&Message{
		MsgType: t,
		Ok:      ok,
	}).setErr(err)
}

// NewInfoResponse creates an info response, the info is json encoded into Meta
func NewInfoResponse(info any, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
	}
	if err != nil {
		return msg.setErr(err)
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return msg.setErr(fmt.Errorf("failed to encode info: %w", err))
	}
	msg.Meta = meta
	return msg
}

// NewCustomResponse creates a new custom response
func NewCustomResponse(meta []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}).setErr(err)
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
		ErrCode: store.RetCInternalError,
	}
}

// NewCodeErrorResponse creates a new error response with a specific return code
func NewCodeErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
		ErrCode: code,
	}
}

// --------------------------------------------------------------------------
// Message Types
// --------------------------------------------------------------------------

// MessageType represents the type of message (name of the command)
type MessageType uint8

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// List commands

	MsgTLPush      // Push to the head
	MsgTRPush      // Push to the tail
	MsgTLPushX     // Push to the head of an existing list
	MsgTRPushX     // Push to the tail of an existing list
	MsgTLPop       // Pop from the head
	MsgTRPop       // Pop from the tail
	MsgTLLen       // Length of a list
	MsgTLRange     // Elements of an index range
	MsgTLIndex     // Element at an index
	MsgTLSet       // Replace the element at an index
	MsgTLInsert    // Insert before or after a pivot
	MsgTLRem       // Remove matching elements
	MsgTRPopLPush  // Move the tail of one list to the head of another
	MsgTBLPop      // Blocking pop from the head
	MsgTBRPop      // Blocking pop from the tail
	MsgTBRPopLPush // Blocking move

	// Administration

	MsgTFlush  // Remove all keys
	MsgTInfo   // Key space information
	MsgTCancel // Cancel a blocking call

	// Custom

	MsgTCustom // Custom operation type
)

// messageTypeNames maps every message type to its command name
var messageTypeNames = map[MessageType]string{
	MsgTUnknown:    "unknown",
	MsgTSuccess:    "success",
	MsgTError:      "error",
	MsgTLPush:      "lpush",
	MsgTRPush:      "rpush",
	MsgTLPushX:     "lpushx",
	MsgTRPushX:     "rpushx",
	MsgTLPop:       "lpop",
	MsgTRPop:       "rpop",
	MsgTLLen:       "llen",
	MsgTLRange:     "lrange",
	MsgTLIndex:     "lindex",
	MsgTLSet:       "lset",
	MsgTLInsert:    "linsert",
	MsgTLRem:       "lrem",
	MsgTRPopLPush:  "rpoplpush",
	MsgTBLPop:      "blpop",
	MsgTBRPop:      "brpop",
	MsgTBRPopLPush: "brpoplpush",
	MsgTFlush:      "flush",
	MsgTInfo:       "info",
	MsgTCancel:     "cancel",
	MsgTCustom:     "custom",
}

// String returns the command name of the message type
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseMessageType returns the message type for a command name
func ParseMessageType(name string) (MessageType, bool) {
	for t, n := range messageTypeNames {
		if n == name {
			return t, true
		}
	}
	return MsgTUnknown, false
}

// MarshalJSON encodes the message type as its command name
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a command name into the message type
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseMessageType(name)
	if !ok {
		return fmt.Errorf("unknown message type: %s", name)
	}
	*t = parsed
	return nil
}
