package rpc

import "encoding/json"

// MethodSpec tells a Catalog how to decode a single method's payload: New
// allocates a fresh zero value of the method's params or result type.
type MethodSpec struct {
	New func() TypedMessage
}

// Catalog is a registration-based MessageCatalog: the embedding
// application registers one MethodSpec per method name it cares about,
// and Catalog decodes into a freshly allocated instance on demand.
type Catalog struct {
	requests      map[string]MethodSpec
	notifications map[string]MethodSpec
	responses     map[string]MethodSpec
	// fallback is used by ResolveResponse when an orphan response's id
	// matches nothing: without a typed hint, the catalog can only decode
	// into a generic value.
	fallback func() TypedMessage
}

// NewCatalog builds an empty Catalog. Use RegisterRequest,
// RegisterNotification, and RegisterResponse to populate it.
func NewCatalog() *Catalog {
	return &Catalog{
		requests:      make(map[string]MethodSpec),
		notifications: make(map[string]MethodSpec),
		responses:     make(map[string]MethodSpec),
	}
}

// RegisterRequest registers how to decode the params of method when it
// arrives as a request.
func (c *Catalog) RegisterRequest(method string, spec MethodSpec) *Catalog {
	c.requests[method] = spec
	return c
}

// RegisterNotification registers how to decode the params of method when
// it arrives as a notification.
func (c *Catalog) RegisterNotification(method string, spec MethodSpec) *Catalog {
	c.notifications[method] = spec
	return c
}

// RegisterResponse registers how to decode the result of method when a
// response naming that method (via the OutstandingRequests entry) is
// received.
func (c *Catalog) RegisterResponse(method string, spec MethodSpec) *Catalog {
	c.responses[method] = spec
	return c
}

// RegisterFallback supplies the type ResolveResponse allocates into when
// an orphan response's id matches nothing and no better hint is
// available. Without one, orphan responses cannot be resolved.
func (c *Catalog) RegisterFallback(newFallback func() TypedMessage) *Catalog {
	c.fallback = newFallback
	return c
}

func (c *Catalog) ParseRequest(method string, params []byte) (TypedMessage, error) {
	return decodeSpec(c.requests, method, params)
}

func (c *Catalog) ParseNotification(method string, params []byte) (TypedMessage, error) {
	return decodeSpec(c.notifications, method, params)
}

func (c *Catalog) ParseResponse(method string, result []byte, rpcErr *RPCError) (TypedMessage, error) {
	if rpcErr != nil {
		return rpcErr, nil
	}
	return decodeSpec(c.responses, method, result)
}

func (c *Catalog) ResolveResponse(result []byte, rpcErr *RPCError) (string, TypedMessage, bool) {
	if c.fallback == nil {
		return "", nil, false
	}
	if rpcErr != nil {
		return "", rpcErr, true
	}
	msg := c.fallback()
	if len(result) == 0 {
		return "", msg, true
	}
	if err := json.Unmarshal(result, msg); err != nil {
		return "", nil, false
	}
	return "", msg, true
}

func decodeSpec(specs map[string]MethodSpec, method string, payload []byte) (TypedMessage, error) {
	spec, ok := specs[method]
	if !ok {
		return nil, nil
	}
	msg := spec.New()
	if len(payload) == 0 || string(payload) == "null" {
		return msg, nil
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
