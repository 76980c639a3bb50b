package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// CeremonyStore keeps WebAuthn ceremony state between begin and finish.
type CeremonyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCeremonyStore(rdb *redis.Client, ttl time.Duration) *CeremonyStore {
	return &CeremonyStore{rdb: rdb, ttl: ttl}
}

func regKey(userID uint) string { return fmt.Sprintf("cl:webauthn:reg:%d", userID) }
func loginKey(id string) string { return fmt.Sprintf("cl:webauthn:login:%s", id) }

func (s *CeremonyStore) SaveRegistration(ctx context.Context, userID uint, sd *webauthn.SessionData) error {
	return s.put(ctx, regKey(userID), sd)
}

func (s *CeremonyStore) TakeRegistration(ctx context.Context, userID uint) (*webauthn.SessionData, error) {
	return s.take(ctx, regKey(userID))
}

func (s *CeremonyStore) SaveLogin(ctx context.Context, ceremonyID string, sd *webauthn.SessionData) error {
	return s.put(ctx, loginKey(ceremonyID), sd)
}

func (s *CeremonyStore) TakeLogin(ctx context.Context, ceremonyID string) (*webauthn.SessionData, error) {
	return s.take(ctx, loginKey(ceremonyID))
}

func (s *CeremonyStore) put(ctx context.Context, k string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, k, b, s.ttl).Err()
}

// take 读取后立即删除，一个 ceremony 只能完成一次
func (s *CeremonyStore) take(ctx context.Context, k string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, k).Bytes()
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}
