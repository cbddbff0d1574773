// Package serializer converts common.Message values to bytes and back.
//
// Three implementations of IRPCSerializer are available:
//
//   - Binary (NewBinarySerializer): a compact custom format. The message type is
//     followed by a 32 bit flag word that marks which fields are present, only those
//     fields are written. Booleans are stored in the flag word alone. Empty values stay
//     distinct from absent ones, so an empty list element survives the round trip.
//     This is the default of the CLI and the fastest of the three.
//
//   - JSON (NewJSONSerializer): human readable, message types are written by their
//     command name ("lpush", "blpop", ...). Useful when debugging the protocol.
//
//   - GOB (NewGOBSerializer): Go's self-describing gob stream. Every message carries
//     its type description, which makes it the largest and slowest format.
//
// Deserialize always resets the target message first, so a Message can be reused
// across calls without leaking fields of a previous message.
//
// The serializers are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewBlockingPopRequest(common.MsgTBLPop, []string{"jobs"}, 1000, callID))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(received, &resp)
package serializer
