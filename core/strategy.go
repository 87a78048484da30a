package core

import "context"

// Credential carries strategy-specific proof of identity. Which fields are
// meaningful depends on the strategy: the credential strategy reads Email and
// Password, OAuth strategies read Code and State, one-time-code strategies
// read Email and Code.
type Credential struct {
	Email       string
	Password    string
	Code        string
	State       string
	ChallengeID string

	IPAddress string
	UserAgent string
}

// Strategy authenticates a user for one provider. Implementations resolve
// (and for social providers, may create) the user but never issue sessions;
// session issuance stays with the auth service so hooks, rate limits, and
// second factors apply uniformly.
type Strategy interface {
	ID() string
	Authenticate(ctx context.Context, cred Credential) (*User, error)
}

// StrategyEndpoints is implemented by strategies that contribute their own
// routes (e.g. an OAuth strategy's authorize-URL endpoint).
type StrategyEndpoints interface {
	Endpoints() []Endpoint
}
