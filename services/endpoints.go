package services

import (
	"fmt"
	"sort"

	"github.com/gatehouse-auth/gatehouse/core"
)

// BaseEndpoints returns the endpoint templates for the core authentication
// routes.
//
// Each endpoint is a template:
// - Path and Method are set
// - Handler is nil (provided by adapters)
// - Metadata contains OpenAPI information
//
// This allows multiple adapters (Fiber, net/http) to share the same
// endpoint definitions while providing their own framework-specific handlers.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:    "/sign-up",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "signUpWithEmailAndPassword",
				Description: "Sign up a user using email and password",
			},
		},
		{
			Path:    "/sign-in",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "signIn",
				Description: "Sign in a user through the selected provider",
			},
		},
		{
			Path:    "/sign-out",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "signOut",
				Description: "Sign out the current user and invalidate the session",
			},
		},
		{
			Path:    "/session",
			Method:  "GET",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "getSession",
				Description: "Get the current user's session data",
			},
		},
		{
			Path:    "/refresh",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "refreshToken",
				Description: "Rotate the session token and extend its expiry",
			},
		},
		{
			Path:    "/verify-email/request",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "requestEmailVerification",
				Description: "Send an email-verification code",
			},
		},
		{
			Path:    "/verify-email/confirm",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "verifyEmail",
				Description: "Redeem an email-verification code",
			},
		},
		{
			Path:    "/reset-password/request",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "requestPasswordReset",
				Description: "Send a password-reset code",
			},
		},
		{
			Path:    "/reset-password/confirm",
			Method:  "POST",
			Handler: nil,
			Metadata: core.EndpointMetadata{
				OperationID: "resetPassword",
				Description: "Redeem a password-reset code and set a new password",
			},
		},
	}
}

// EndpointRegistry collects the routes of the base surface, strategies,
// and plugins, rejecting duplicate METHOD:PATH registrations up front so
// misconfigured plugins fail at startup instead of shadowing routes.
type EndpointRegistry struct {
	endpoints []core.Endpoint
	seen      map[string]string // METHOD:PATH -> owner
}

func NewEndpointRegistry() *EndpointRegistry {
	return &EndpointRegistry{seen: make(map[string]string)}
}

func (r *EndpointRegistry) Register(owner string, endpoints ...core.Endpoint) error {
	for _, ep := range endpoints {
		key := ep.Method + ":" + ep.Path
		if existing, ok := r.seen[key]; ok {
			return fmt.Errorf("route %s already registered by %s", key, existing)
		}
		r.seen[key] = owner
		r.endpoints = append(r.endpoints, ep)
	}
	return nil
}

// RegisterPlugin initializes the plugin against the host and registers
// its routes.
func (r *EndpointRegistry) RegisterPlugin(p core.Plugin, host core.PluginHost) error {
	if err := p.Init(host); err != nil {
		return fmt.Errorf("plugin %s init failed: %w", p.ID(), err)
	}
	if err := r.Register("plugin:"+p.ID(), p.Endpoints()...); err != nil {
		return err
	}
	return nil
}

// All returns the registered endpoints sorted by path then method, so
// route registration order is deterministic.
func (r *EndpointRegistry) All() []core.Endpoint {
	out := make([]core.Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}
