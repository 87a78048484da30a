package core

import "context"

// Endpoint describes one route of the auth surface.
//
// The base routes ship with a nil Handler: adapters provide their own
// framework-native handlers for those. Strategy and plugin routes carry a
// framework-agnostic Handler that adapters wrap generically.
type Endpoint struct {
	Path     string
	Method   string
	Handler  func(ctx *RequestContext) error
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
	Protected   bool        // route requires a valid session
	RequestBody interface{} // for validation
	Responses   map[int]interface{}
}

// RequestContext is the framework-agnostic view of a request that generic
// handlers operate on. Adapters populate the request side and serialize
// Status/Result after the handler returns.
type RequestContext struct {
	Context context.Context
	Request interface{} // the underlying *http.Request, fiber.Ctx, etc

	Auth    AuthProvider
	Session *Session

	// Request data
	Body      []byte
	Token     string // bearer token, if presented
	IPAddress string
	UserAgent string

	// Response data, set by the handler
	Status int
	Result interface{}
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
