package store

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dList/lib/db"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// KeySpaceFactory is a function type that creates a new key space used by the store.
// This is used to abstract the creation of the key space from the store implementation.
type KeySpaceFactory func() db.KeySpace

// Position selects the side of the pivot element InsertRelative inserts at.
type Position uint8

const (
	PositionBefore Position = iota // insert before the pivot (towards the head)
	PositionAfter                  // insert after the pivot (towards the tail)
)

func (p Position) String() string {
	switch p {
	case PositionBefore:
		return "before"
	case PositionAfter:
		return "after"
	default:
		return "unknown"
	}
}

// ParsePosition converts "before" or "after" into a Position.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "before", "BEFORE":
		return PositionBefore, nil
	case "after", "AFTER":
		return PositionAfter, nil
	default:
		return 0, NewError(RetCInvalidOperation, fmt.Sprintf("unknown position %q", s))
	}
}

// IListStore is the interface for interacting with a store of lists.
//
// Keys that are absent behave like empty lists for reads. A list that becomes
// empty is removed, so no key ever holds an empty list.
//
// Results that may be absent are reported with a boolean (false = no result)
// and a nil error. Indices may be negative, -1 denotes the last element.
type IListStore interface {

	// --------------------------------------------------------------------------
	// Push Operations
	// --------------------------------------------------------------------------

	// PushHead inserts value at the head of the list (creating it if needed) and returns the new length.
	PushHead(key string, value []byte) (length int, err error)
	// PushTail inserts value at the tail of the list (creating it if needed) and returns the new length.
	PushTail(key string, value []byte) (length int, err error)
	// PushHeadIfExists is PushHead for existing keys only. Returns 0 and does nothing if the key is absent.
	PushHeadIfExists(key string, value []byte) (length int, err error)
	// PushTailIfExists is PushTail for existing keys only. Returns 0 and does nothing if the key is absent.
	PushTailIfExists(key string, value []byte) (length int, err error)

	// --------------------------------------------------------------------------
	// Pop Operations
	// --------------------------------------------------------------------------

	// PopHead removes and returns the first element. ok is false if the key is absent.
	PopHead(key string) (value []byte, ok bool, err error)
	// PopTail removes and returns the last element. ok is false if the key is absent.
	PopTail(key string) (value []byte, ok bool, err error)

	// --------------------------------------------------------------------------
	// Positional Operations
	// --------------------------------------------------------------------------

	// Length returns the number of elements, 0 if the key is absent.
	Length(key string) (length int, err error)
	// Range returns the elements between start and stop (both inclusive).
	// Out of range bounds are clamped, an empty selection returns an empty slice.
	Range(key string, start, stop int) (values [][]byte, err error)
	// IndexGet returns the element at index. ok is false if the index is out of range.
	IndexGet(key string, index int) (value []byte, ok bool, err error)
	// IndexSet replaces the element at index.
	// Returns an error with code RetCIndexOutOfRange if the index is out of range or the key is absent.
	IndexSet(key string, index int, value []byte) (err error)
	// InsertRelative inserts value before or after the first element equal to pivot.
	// inserted is false (and nothing changes) if the key is absent or the pivot is not found.
	InsertRelative(key string, pivot, value []byte, pos Position) (inserted bool, err error)
	// RemoveMatching removes elements equal to value and returns how many were removed.
	// count > 0 removes the first count matches from the head, count < 0 the last |count|
	// matches from the tail, count == 0 all matches.
	RemoveMatching(key string, value []byte, count int) (removed int, err error)

	// --------------------------------------------------------------------------
	// Move Operations
	// --------------------------------------------------------------------------

	// MoveTailToHead atomically pops the tail of src and pushes it to the head of dst.
	// ok is false (and nothing changes) if src is absent. src == dst rotates the list.
	MoveTailToHead(src, dst string) (value []byte, ok bool, err error)

	// --------------------------------------------------------------------------
	// Blocking Operations
	// --------------------------------------------------------------------------

	// BlockingPopHead pops the head of the first non-empty key in keys (in the given order).
	// If all keys are empty the call blocks until an element becomes available, the timeout
	// elapses (ok = false, err = nil) or ctx is done (err = ctx.Err()).
	// A timeout of 0 blocks indefinitely, a negative timeout is an invalid operation.
	BlockingPopHead(ctx context.Context, keys []string, timeout time.Duration) (key string, value []byte, ok bool, err error)
	// BlockingPopTail is BlockingPopHead popping from the tail.
	BlockingPopTail(ctx context.Context, keys []string, timeout time.Duration) (key string, value []byte, ok bool, err error)
	// BlockingMoveTailToHead is MoveTailToHead that waits for src to become non-empty.
	// Timeout and cancellation behave like BlockingPopHead.
	BlockingMoveTailToHead(ctx context.Context, src, dst string, timeout time.Duration) (value []byte, ok bool, err error)

	// --------------------------------------------------------------------------
	// Administration
	// --------------------------------------------------------------------------

	// Reset removes all keys. Blocked clients stay blocked.
	Reset() (err error)
	// GetDBInfo returns metadata about the key space underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases the resources of the store. Blocked calls return without a result.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ListStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf returns the RetCode of err.
// nil maps to RetCSuccess, errors that are not an *Error to RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// IsIndexOutOfRange reports whether err is an index out of range error.
func IsIndexOutOfRange(err error) bool {
	return err != nil && CodeOf(err) == RetCIndexOutOfRange
}

// IsTypeMismatch reports whether err is a type mismatch error.
func IsTypeMismatch(err error) bool {
	return err != nil && CodeOf(err) == RetCTypeMismatch
}

// IsInvalidOperation reports whether err is an invalid operation error.
func IsInvalidOperation(err error) bool {
	return err != nil && CodeOf(err) == RetCInvalidOperation
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Malformed request (e.g. negative timeout, no keys).
	RetCIndexOutOfRange                     // 4: Index is outside the list (IndexSet).
	RetCTypeMismatch                        // 5: Key holds a value that is not a list.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCIndexOutOfRange:
		return "IndexOutOfRange"
	case RetCTypeMismatch:
		return "TypeMismatch"
	default:
		return "Unknown"
	}
}
