// Package store provides the high-level interface of the list store together with
// its error model. It serves as an abstraction layer over db.KeySpace
// implementations and adds the command semantics and the blocking operations.
//
// Key Components:
//
//   - IListStore Interface: The operations on lists (push, pop, range, index
//     access, relative insert, removal, moves) and the blocking pop and move
//     operations. All implementations share this interface, so applications
//     can use a local store and a remote store (see rpc/client) interchangeably.
//
//   - Error System: Errors carry a RetCode. Absent results are not errors, they
//     are reported through a boolean. Only malformed requests, index violations
//     of IndexSet and internal failures produce an *Error. CodeOf, IsIndexOutOfRange
//     and IsTypeMismatch inspect (possibly wrapped) errors.
//
//   - KeySpaceFactory: A function type that abstracts the creation of the
//     underlying db.KeySpace.
//
// Implementations:
//
//   - Local Store (lstore): The single-node implementation holding all lists in
//     memory. Available in the "github.com/ValentinKolb/dList/lib/store/lstore" package.
//
//   - Remote Store (rpc/client): Forwards every operation to a dlist server.
//     Available in the "github.com/ValentinKolb/dList/rpc/client" package.
//
// The testing sub package provides a conformance suite that both implementations pass.
package store
