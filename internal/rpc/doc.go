// Package rpc implements a JSON-RPC 2.0 endpoint kernel for LSP-style
// bidirectional communication: a local application and a remote peer
// exchange requests, responses, and notifications over a framed duplex
// byte stream.
//
// The package owns the hard part (framing, classification, correlating
// outbound requests with their responses including a synchronous
// wait-for-response call, tracking inbound requests so the peer can
// cancel them, and serializing writes) while treating the transport,
// the JSON reflection layer, the local handler, and logging as narrow
// injected interfaces (see interfaces.go).
//
// Invariants held throughout this package:
//
//  1. A request ID appears in the outstanding-request table for at most
//     one in-flight outbound request at a time.
//  2. Every accepted response is matched against the outstanding-request
//     table by ID; unmatched responses are surfaced to the local
//     endpoint as orphan responses, never dropped silently.
//  3. Writes to the output stream are totally ordered: two writers never
//     interleave bytes.
//  4. The outbound ID allocator is strictly monotonic for the lifetime
//     of one Dispatcher.
//  5. A received-request entry exists only while the Dispatcher has not
//     yet invoked the local handler for that ID and no cancellation has
//     been observed for it.
package rpc
