package rpc

import (
	"encoding/json"
	"testing"
)

func decodeEnvelope(t *testing.T, raw string) *wireEnvelope {
	t.Helper()
	var env wireEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return &env
}

func TestClassifyRequest(t *testing.T) {
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","id":1,"method":"foo","params":{}}`)
	if kind := classify(env); kind != KindRequest {
		t.Fatalf("got %v, want KindRequest", kind)
	}
}

func TestClassifyNotification(t *testing.T) {
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","method":"foo","params":{}}`)
	if kind := classify(env); kind != KindNotification {
		t.Fatalf("got %v, want KindNotification", kind)
	}
}

func TestClassifyResponseWithResult(t *testing.T) {
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	if kind := classify(env); kind != KindResponse {
		t.Fatalf("got %v, want KindResponse", kind)
	}
}

func TestClassifyResponseWithNullResult(t *testing.T) {
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","id":1,"result":null}`)
	if kind := classify(env); kind != KindResponse {
		t.Fatalf("an explicit null result must still classify as a response, got %v", kind)
	}
}

func TestClassifyResponseWithError(t *testing.T) {
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`)
	if kind := classify(env); kind != KindResponse {
		t.Fatalf("got %v, want KindResponse", kind)
	}
}

func TestClassifyMalformedNoMethodNoResultNoError(t *testing.T) {
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","id":1}`)
	if kind := classify(env); kind != KindMalformed {
		t.Fatalf("got %v, want KindMalformed", kind)
	}
}

func TestClassifyMalformedResultAndErrorBothPresent(t *testing.T) {
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":-32603,"message":"x"}}`)
	if kind := classify(env); kind != KindMalformed {
		t.Fatalf("a response can't carry both a result and an error, got %v", kind)
	}
}

func TestClassifyRequestWinsOverAmbiguousResultField(t *testing.T) {
	// A method+id envelope is a request even if it also happens to carry a
	// result field; a conforming peer would never send this, but classify
	// only needs to be consistent, not validate the whole message.
	env := decodeEnvelope(t, `{"jsonrpc":"2.0","id":1,"method":"foo","result":{}}`)
	if kind := classify(env); kind != KindRequest {
		t.Fatalf("got %v, want KindRequest", kind)
	}
}
