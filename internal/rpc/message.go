package rpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC 2.0 request identifier. The wire format allows
// either a JSON number or a JSON string; RequestID carries exactly one of
// the two so it can be used as a map key without boxing.
type RequestID struct {
	str      string
	num      int64
	isString bool
	set      bool
}

// NewNumberID builds a RequestID backed by a signed 64-bit integer, the
// form produced by the Dispatcher's own ID allocator.
func NewNumberID(n int64) RequestID {
	return RequestID{num: n, set: true}
}

// NewStringID builds a RequestID backed by a string, the form a peer is
// free to use for its own outbound requests.
func NewStringID(s string) RequestID {
	return RequestID{str: s, isString: true, set: true}
}

// IsValid reports whether the ID was actually set (as opposed to the zero
// value, which a notification's absent ID decodes to).
func (id RequestID) IsValid() bool { return id.set }

// String renders the ID for logging and error messages.
func (id RequestID) String() string {
	if !id.set {
		return "<no-id>"
	}
	if id.isString {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	if !id.set {
		return []byte("null"), nil
	}
	if id.isString {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*id = RequestID{num: asNumber, set: true}
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*id = RequestID{str: asString, isString: true, set: true}
		return nil
	}
	return fmt.Errorf("request id must be a JSON number or string, got %s", string(data))
}

// RPCError is the JSON-RPC 2.0 error object carried in a Response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Request is a decoded JSON-RPC request: it carries an ID and expects a
// matching Response from whichever side receives it.
type Request struct {
	ID     RequestID
	Method string
	Params json.RawMessage
}

// Response is a decoded JSON-RPC response. Exactly one of Result or Error
// is set.
type Response struct {
	ID     RequestID
	Result json.RawMessage
	Error  *RPCError
}

// Notification is a decoded JSON-RPC notification: fire-and-forget, no ID.
type Notification struct {
	Method string
	Params json.RawMessage
}

// jsonrpcVersion is the literal marker every message on the wire must
// carry.
const jsonrpcVersion = "2.0"

// wireEnvelope is the union of every field any of the three message kinds
// can carry. Decoding into this first, then inspecting which fields are
// present, is how the Classifier tells the kinds apart without needing to
// know the method-specific payload shape.
type wireEnvelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// hasResult reports whether the wire message carried a "result" key at
// all. An explicit JSON null is a valid, present result, distinct from
// the key being absent entirely.
func (e *wireEnvelope) hasResult() bool {
	return e.Result != nil
}

// encodeRequest renders a Request to its wire form.
func encodeRequest(r Request) ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Jsonrpc: jsonrpcVersion,
		ID:      &r.ID,
		Method:  r.Method,
		Params:  r.Params,
	})
}

// encodeResponse renders a Response to its wire form.
func encodeResponse(r Response) ([]byte, error) {
	env := wireEnvelope{
		Jsonrpc: jsonrpcVersion,
		ID:      &r.ID,
		Error:   r.Error,
	}
	if r.Error == nil {
		if r.Result == nil {
			env.Result = json.RawMessage("null")
		} else {
			env.Result = r.Result
		}
	}
	return json.Marshal(env)
}

// encodeNotification renders a Notification to its wire form.
func encodeNotification(n Notification) ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Jsonrpc: jsonrpcVersion,
		Method:  n.Method,
		Params:  n.Params,
	})
}

// cancelParams is the payload of the $/cancelRequest notification.
type cancelParams struct {
	ID RequestID `json:"id"`
}

// MethodCancelRequest is the well-known notification method that
// invalidates a ReceivedRequest entry before the Dispatcher commits to
// routing it to the local handler.
const MethodCancelRequest = "$/cancelRequest"
