package core

import "errors"

// Authentication Related Errors
var (
	// User errors
	ErrUserExists         = errors.New("user already exists")       // 409 Conflict
	ErrUserNotFound       = errors.New("user not found")            // 404 Not Found
	ErrInvalidCredentials = errors.New("invalid email or password") // 401 Unauthorized
)

// Session errors
var (
	ErrMissingAuthHeader = errors.New("missing authorization header") // 401
	ErrInvalidToken      = errors.New("invalid session token")        // 401
	ErrSessionNotFound   = errors.New("session not found")            // 401
	ErrSessionExpired    = errors.New("session expired")              // 401
	ErrCacheNotFound     = errors.New("session not found in cache")
)

// Strategy / provider errors
var (
	ErrProviderNotFound  = errors.New("unknown authentication provider") // 400
	ErrProviderConflict  = errors.New("provider already registered")     // 500
	ErrInvalidOAuthState = errors.New("invalid or expired oauth state")  // 401
	ErrAccountNotLinked  = errors.New("account not linked to provider")  // 401
)

// Verification errors
var (
	ErrVerificationNotFound = errors.New("verification not found or expired") // 401
	ErrVerificationInvalid  = errors.New("verification code invalid")         // 401
	ErrTooManyAttempts      = errors.New("verification attempts exceeded")    // 401
)

// Rate limiting
var (
	ErrRateLimited = errors.New("too many requests") // 429
)

// Validation errors (client input)
var (
	ErrInvalidAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'") // 401
	ErrEmailRequired     = errors.New("email is required")                                       // 400
	ErrPasswordRequired  = errors.New("password is required")                                    // 400
	ErrPasswordTooShort  = errors.New("password is too short")                                   // 400
	ErrPasswordTooLong   = errors.New("password is too long")                                    // 400
	ErrInvalidEmail      = errors.New("invalid email format")                                    // 400
)

// Config errors (server-side configuration)
var (
	ErrDBAdapterRequired   = errors.New("database adapter is required") // 500
	ErrHTTPAdapterRequired = errors.New("http adapter is required")     // 500
	ErrSecretRequired      = errors.New("secret is required")           // 500
	ErrSecretTooShort      = errors.New("secret too short")             // 500
)

var (
	ErrNotImplemented = errors.New("not implemented") // 501
)
