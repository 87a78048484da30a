package core

// HTTPProvider is implemented by framework adapters. RegisterRoutes mounts
// the base auth endpoints plus any strategy/plugin endpoints under basePath.
type HTTPProvider interface {
	RegisterRoutes(auth AuthProvider, basePath string, extra []Endpoint) error
	BuildProtectedMiddleware(auth AuthProvider) interface{}
}
