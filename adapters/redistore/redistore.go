// Package redistore provides a Redis-backed session store. It implements
// core.SessionStorage only; pair it with a relational adapter for users,
// accounts and verifications when sessions should live in Redis instead.
//
// Records expire naturally via Redis TTLs, so DeleteExpiredSessions is a
// no-op kept for interface compliance.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-auth/gatehouse/core"
)

const keyPrefix = "gh:sess:"

// Store holds sessions in Redis keyed by token hash, with secondary
// indexes for lookup by session ID and enumeration by user.
type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Connect dials Redis at the given address and verifies the connection.
func Connect(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redistore: ping: %w", err)
	}
	return New(client), nil
}

// record is the wire form of a session. core.Session elides TokenHash from
// JSON on purpose, so the store carries its own marshalling shape.
type record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TokenHash string    `json:"tokenHash"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toRecord(s *core.Session) record {
	return record{
		ID:        s.ID,
		UserID:    s.UserID,
		TokenHash: s.TokenHash,
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (r record) session() *core.Session {
	return &core.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		TokenHash: r.TokenHash,
		IPAddress: r.IPAddress,
		UserAgent: r.UserAgent,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func hashKey(tokenHash string) string { return keyPrefix + "h:" + tokenHash }
func idKey(id string) string          { return keyPrefix + "id:" + id }
func userKey(userID string) string    { return keyPrefix + "u:" + userID }

func (s *Store) CreateSession(ctx context.Context, session *core.Session) error {
	payload, err := json.Marshal(toRecord(session))
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return core.ErrSessionExpired
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, hashKey(session.TokenHash), payload, ttl)
	pipe.Set(ctx, idKey(session.ID), session.TokenHash, ttl)
	pipe.SAdd(ctx, userKey(session.UserID), session.ID)
	pipe.ExpireAt(ctx, userKey(session.UserID), session.ExpiresAt)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	payload, err := s.client.Get(ctx, hashKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}

	var r record
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, err
	}
	return r.session(), nil
}

func (s *Store) GetSessionByID(ctx context.Context, id string) (*core.Session, error) {
	tokenHash, err := s.client.Get(ctx, idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	return s.GetSessionByHash(ctx, tokenHash)
}

func (s *Store) GetUserSessions(ctx context.Context, userID string) ([]*core.Session, error) {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*core.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.GetSessionByID(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrSessionNotFound) {
				// Expired entry still referenced by the index: drop it.
				s.client.SRem(ctx, userKey(userID), id)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// UpdateSession rewrites the record, re-keying when the token hash rotated.
func (s *Store) UpdateSession(ctx context.Context, session *core.Session) error {
	prev, err := s.GetSessionByID(ctx, session.ID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(toRecord(session))
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return core.ErrSessionExpired
	}

	pipe := s.client.TxPipeline()
	if prev.TokenHash != session.TokenHash {
		pipe.Del(ctx, hashKey(prev.TokenHash))
	}
	pipe.Set(ctx, hashKey(session.TokenHash), payload, ttl)
	pipe.Set(ctx, idKey(session.ID), session.TokenHash, ttl)
	pipe.ExpireAt(ctx, userKey(session.UserID), session.ExpiresAt)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) DeleteSessionByID(ctx context.Context, id string) error {
	session, err := s.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, session)
}

func (s *Store) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	session, err := s.GetSessionByHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	return s.remove(ctx, session)
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	sessions, err := s.GetUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, session := range sessions {
		if err := s.remove(ctx, session); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// DeleteExpiredSessions is a no-op: Redis evicts expired records itself.
func (s *Store) DeleteExpiredSessions(_ context.Context) (int, error) {
	return 0, nil
}

func (s *Store) remove(ctx context.Context, session *core.Session) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, hashKey(session.TokenHash))
	pipe.Del(ctx, idKey(session.ID))
	pipe.SRem(ctx, userKey(session.UserID), session.ID)
	_, err := pipe.Exec(ctx)
	return err
}

var _ core.SessionStorage = (*Store)(nil)
