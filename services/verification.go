package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/core"
	"github.com/gatehouse-auth/gatehouse/metrics"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
)

// Challenge purposes. Purpose is checked on consume so a password-reset
// code can never redeem an email-verification challenge.
const (
	PurposeEmailVerification = "email-verification"
	PurposePasswordReset     = "password-reset"
	PurposeTwoFactor         = "two-factor"
	PurposeSignInOTP         = "sign-in-otp"
)

// VerificationService issues and consumes single-use challenges backed by
// VerificationStorage. Codes are numeric one-time codes; only their hash is
// stored.
type VerificationService struct {
	storage core.VerificationStorage
	config  core.VerificationConfig
	sender  core.Sender
	metrics *metrics.Registry
}

func NewVerificationService(storage core.VerificationStorage, config core.VerificationConfig, sender core.Sender, m *metrics.Registry) *VerificationService {
	if config.TTL <= 0 {
		config.TTL = core.DefaultVerificationConfig().TTL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = core.DefaultVerificationConfig().MaxAttempts
	}
	return &VerificationService{
		storage: storage,
		config:  config,
		sender:  sender,
		metrics: m,
	}
}

// Issue creates a challenge for the identifier and delivers it through the
// configured sender. The raw code is returned only so plugins with their
// own delivery channel can use it; HTTP handlers must never echo it.
func (v *VerificationService) Issue(ctx context.Context, identifier, purpose string) (challengeID, code string, err error) {
	code, err = crypto.GenerateOTP(v.config.CodeDigits)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate code: %w", err)
	}

	challengeID = uuid.NewString()

	record := &core.Verification{
		ID:         challengeID,
		Identifier: identifier,
		ValueHash:  crypto.HashToken(code),
		Purpose:    purpose,
		ExpiresAt:  time.Now().Add(v.config.TTL),
		CreatedAt:  time.Now(),
	}

	if err := v.storage.CreateVerification(ctx, record); err != nil {
		return "", "", fmt.Errorf("failed to store verification: %w", err)
	}

	if v.sender != nil {
		if err := v.sender(ctx, identifier, challengeID, code, purpose); err != nil {
			// A challenge nobody received is dead weight; drop it.
			_ = v.storage.DeleteVerification(ctx, challengeID)
			return "", "", fmt.Errorf("failed to deliver verification: %w", err)
		}
	}

	v.metrics.Inc(metrics.VerificationIssued)
	return challengeID, code, nil
}

// Consume redeems a challenge. Wrong codes burn an attempt; the record is
// deleted once attempts run out, on expiry, and on success (single use).
func (v *VerificationService) Consume(ctx context.Context, challengeID, code, purpose string) (*core.Verification, error) {
	record, err := v.storage.GetVerificationByID(ctx, challengeID)
	if err != nil {
		v.metrics.Inc(metrics.VerificationFailed)
		return nil, core.ErrVerificationNotFound
	}

	if time.Now().After(record.ExpiresAt) {
		_ = v.storage.DeleteVerification(ctx, challengeID)
		v.metrics.Inc(metrics.VerificationFailed)
		return nil, core.ErrVerificationNotFound
	}

	// Purpose mismatch is indistinguishable from a missing record on purpose
	if record.Purpose != purpose {
		v.metrics.Inc(metrics.VerificationFailed)
		return nil, core.ErrVerificationNotFound
	}

	valid, err := crypto.VerifyToken(code, record.ValueHash)
	if err != nil || !valid {
		record.Attempts++
		if record.Attempts >= v.config.MaxAttempts {
			_ = v.storage.DeleteVerification(ctx, challengeID)
			v.metrics.Inc(metrics.VerificationFailed)
			return nil, core.ErrTooManyAttempts
		}
		_ = v.storage.UpdateVerification(ctx, record)
		v.metrics.Inc(metrics.VerificationFailed)
		return nil, core.ErrVerificationInvalid
	}

	if err := v.storage.DeleteVerification(ctx, challengeID); err != nil {
		return nil, fmt.Errorf("failed to consume verification: %w", err)
	}

	v.metrics.Inc(metrics.VerificationConsumed)
	return record, nil
}

// CleanupExpired removes expired challenge rows.
func (v *VerificationService) CleanupExpired(ctx context.Context) (int, error) {
	return v.storage.DeleteExpiredVerifications(ctx)
}
