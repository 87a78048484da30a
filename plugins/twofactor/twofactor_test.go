package twofactor

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-auth/gatehouse/core"
	"github.com/gatehouse-auth/gatehouse/metrics"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
	"github.com/gatehouse-auth/gatehouse/services"
)

type fakeHost struct {
	storage  core.AuthStorage
	sessions core.SessionIssuer
	registry *metrics.Registry
	factor   core.SecondFactor
}

func (h *fakeHost) Storage() core.AuthStorage            { return h.storage }
func (h *fakeHost) Sessions() core.SessionIssuer         { return h.sessions }
func (h *fakeHost) Logger() *slog.Logger                 { return slog.Default() }
func (h *fakeHost) Metrics() *metrics.Registry           { return h.registry }
func (h *fakeHost) Secret() []byte                       { return []byte("test-secret") }
func (h *fakeHost) SetSecondFactor(sf core.SecondFactor) { h.factor = sf }

func newTestPlugin(t *testing.T) (*Plugin, *services.FakeStorageProvider, *fakeHost) {
	t.Helper()
	storage := services.NewFakeStorageProvider()
	host := &fakeHost{
		storage:  storage,
		sessions: services.NewSessionManager(core.SessionConfig{MaxAge: time.Hour}, storage, nil),
		registry: metrics.New(),
	}

	plugin := New(Config{Issuer: "test-app"})
	require.NoError(t, plugin.Init(host))
	return plugin, storage, host
}

func seedUser(t *testing.T, storage *services.FakeStorageProvider, email string) *core.User {
	t.Helper()
	user := &core.User{Email: email}
	require.NoError(t, storage.CreateUser(context.Background(), user))
	return user
}

// currentCode derives the code an authenticator app would show for the
// plugin's stored secret.
func currentCode(t *testing.T, plugin *Plugin, secretBase32 string) string {
	t.Helper()
	secret, err := crypto.DecodeTOTPSecret(secretBase32)
	require.NoError(t, err)
	code, err := plugin.totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// Requirement: Init registers the plugin as the host's second factor.
func TestPlugin_Init(t *testing.T) {
	plugin, _, host := newTestPlugin(t)
	assert.Same(t, plugin, host.factor)
}

// Requirement: enrollment is two-step; the secret gates logins only after Confirm.
func TestPlugin_EnrollAndConfirm(t *testing.T) {
	ctx := context.Background()
	plugin, storage, _ := newTestPlugin(t)
	user := seedUser(t, storage, "alice@example.com")

	result, err := plugin.Enroll(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Secret)
	assert.Contains(t, result.ProvisionURI, "otpauth://totp/")
	assert.Contains(t, result.ProvisionURI, "issuer=test-app")

	// Pending enrollment does not count as enrolled.
	enrolled, err := plugin.Enrolled(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	// Wrong code fails, enrollment stays pending.
	err = plugin.Confirm(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, core.ErrVerificationInvalid)

	require.NoError(t, plugin.Confirm(ctx, user.ID, currentCode(t, plugin, result.Secret)))

	enrolled, err = plugin.Enrolled(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	// Enrolling twice is refused.
	_, err = plugin.Enroll(ctx, user)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

// Requirement: Confirm without a pending enrollment is rejected.
func TestPlugin_ConfirmWithoutEnroll(t *testing.T) {
	plugin, storage, _ := newTestPlugin(t)
	user := seedUser(t, storage, "alice@example.com")

	err := plugin.Confirm(context.Background(), user.ID, "123456")
	assert.ErrorIs(t, err, ErrNotEnrolling)
}

func enrollUser(t *testing.T, plugin *Plugin, user *core.User) string {
	t.Helper()
	ctx := context.Background()
	result, err := plugin.Enroll(ctx, user)
	require.NoError(t, err)
	require.NoError(t, plugin.Confirm(ctx, user.ID, currentCode(t, plugin, result.Secret)))
	return result.Secret
}

// Requirement: Verify redeems a pending login with a correct code and issues the withheld session.
func TestPlugin_Verify(t *testing.T) {
	ctx := context.Background()
	plugin, storage, _ := newTestPlugin(t)
	user := seedUser(t, storage, "alice@example.com")
	secret := enrollUser(t, plugin, user)

	challengeID, err := plugin.Begin(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, challengeID)

	// The confirmation burned the current time step; wait for the next one
	// is not an option in tests, so verify against the following counter by
	// generating with a future timestamp inside the accepted skew.
	raw, err := crypto.DecodeTOTPSecret(secret)
	require.NoError(t, err)
	code, err := plugin.totp.GenerateCode(raw, time.Now().Add(30*time.Second))
	require.NoError(t, err)

	result, err := plugin.Verify(ctx, challengeID, code, "192.0.2.1", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.Token)
	require.NotNil(t, result.Session)
	assert.Equal(t, user.ID, result.Session.UserID)

	// The challenge is single use.
	_, err = plugin.Verify(ctx, challengeID, code, "", "")
	assert.ErrorIs(t, err, core.ErrVerificationNotFound)
}

// Requirement: a code accepted once is rejected when replayed in the same time step.
func TestPlugin_VerifyRejectsReplay(t *testing.T) {
	ctx := context.Background()
	plugin, storage, _ := newTestPlugin(t)
	user := seedUser(t, storage, "alice@example.com")
	secret := enrollUser(t, plugin, user)

	// The enrollment confirmation already consumed the current counter;
	// replaying the same code on a fresh login challenge must fail.
	challengeID, err := plugin.Begin(ctx, user)
	require.NoError(t, err)

	_, err = plugin.Verify(ctx, challengeID, currentCode(t, plugin, secret), "", "")
	assert.ErrorIs(t, err, core.ErrVerificationInvalid)
}

// Requirement: wrong codes burn attempts and the challenge dies at the budget.
func TestPlugin_VerifyAttemptBudget(t *testing.T) {
	ctx := context.Background()
	storage := services.NewFakeStorageProvider()
	host := &fakeHost{
		storage:  storage,
		sessions: services.NewSessionManager(core.SessionConfig{MaxAge: time.Hour}, storage, nil),
	}
	plugin := New(Config{MaxAttempts: 2})
	require.NoError(t, plugin.Init(host))

	user := seedUser(t, storage, "alice@example.com")
	enrollUser(t, plugin, user)

	challengeID, err := plugin.Begin(ctx, user)
	require.NoError(t, err)

	_, err = plugin.Verify(ctx, challengeID, "000000", "", "")
	assert.ErrorIs(t, err, core.ErrVerificationInvalid)

	_, err = plugin.Verify(ctx, challengeID, "000000", "", "")
	assert.ErrorIs(t, err, core.ErrTooManyAttempts)

	// Exhausted challenge is gone.
	_, err = plugin.Verify(ctx, challengeID, "000000", "", "")
	assert.ErrorIs(t, err, core.ErrVerificationNotFound)
}

// Requirement: Disable requires a current code and removes the enrollment.
func TestPlugin_Disable(t *testing.T) {
	ctx := context.Background()
	plugin, storage, _ := newTestPlugin(t)
	user := seedUser(t, storage, "alice@example.com")
	secret := enrollUser(t, plugin, user)

	err := plugin.Disable(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, core.ErrVerificationInvalid)

	raw, err := crypto.DecodeTOTPSecret(secret)
	require.NoError(t, err)
	code, err := plugin.totp.GenerateCode(raw, time.Now().Add(30*time.Second))
	require.NoError(t, err)
	require.NoError(t, plugin.Disable(ctx, user.ID, code))

	enrolled, err := plugin.Enrolled(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)
}

// Requirement: the enroll route resolves the user through the plugin's own
// storage. HTTP adapters populate only Context/Session/Body on the request
// context, so the handler must work with exactly that shape.
func TestPlugin_EnrollEndpointUsesHostStorage(t *testing.T) {
	plugin, storage, _ := newTestPlugin(t)
	user := seedUser(t, storage, "alice@example.com")

	rc := &core.RequestContext{
		Context:   context.Background(),
		Session:   &core.Session{ID: "session-1", UserID: user.ID},
		IPAddress: "192.0.2.1",
		UserAgent: "test-agent",
	}

	require.NoError(t, plugin.handleEnroll(rc))
	assert.Equal(t, http.StatusOK, rc.Status)

	result, ok := rc.Result.(*EnrollResult)
	require.True(t, ok, "unexpected result type %T", rc.Result)
	assert.NotEmpty(t, result.Secret)
	assert.Contains(t, result.ProvisionURI, "alice@example.com")
}

// Requirement: completed and failed login verifications are counted.
func TestPlugin_VerifyCountsOutcomes(t *testing.T) {
	ctx := context.Background()
	plugin, storage, host := newTestPlugin(t)
	user := seedUser(t, storage, "alice@example.com")
	secret := enrollUser(t, plugin, user)

	challengeID, err := plugin.Begin(ctx, user)
	require.NoError(t, err)

	_, err = plugin.Verify(ctx, challengeID, "000000", "", "")
	require.ErrorIs(t, err, core.ErrVerificationInvalid)

	raw, err := crypto.DecodeTOTPSecret(secret)
	require.NoError(t, err)
	code, err := plugin.totp.GenerateCode(raw, time.Now().Add(30*time.Second))
	require.NoError(t, err)
	_, err = plugin.Verify(ctx, challengeID, code, "", "")
	require.NoError(t, err)

	snap := host.registry.Snapshot()
	assert.Equal(t, uint64(1), snap.Get(metrics.TwoFactorFailure))
	assert.Equal(t, uint64(1), snap.Get(metrics.TwoFactorSuccess))
}

// Requirement: every route the plugin mounts lives under /two-factor and
// management routes require a session.
func TestPlugin_Endpoints(t *testing.T) {
	plugin := New(Config{})

	endpoints := plugin.Endpoints()
	require.Len(t, endpoints, 4)

	protected := map[string]bool{}
	for _, ep := range endpoints {
		assert.Contains(t, ep.Path, "/two-factor/")
		assert.NotNil(t, ep.Handler)
		protected[ep.Path] = ep.Metadata.Protected
	}
	assert.True(t, protected["/two-factor/enroll"])
	assert.True(t, protected["/two-factor/confirm"])
	assert.True(t, protected["/two-factor/disable"])
	assert.False(t, protected["/two-factor/verify"])
}
