package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

// CookieName 业务会话 Cookie
const CookieName = "constructlink_session"

// Session keys shared by the auth, CSRF and password-reset flows.
const (
	KeyUserID       = "user_id"
	KeyRole         = "role"
	KeyIntendedURL  = "intended_url"
	KeyCSRFToken    = "csrf_token"
	KeyResetToken   = "reset_token"
	KeyResetEmail   = "reset_email"
	KeyResetExpires = "reset_expires"
	KeyRememberMe   = "remember_me"
)

func key(id string) string       { return fmt.Sprintf("cl:sess:%s", id) }
func userSetKey(uid uint) string { return fmt.Sprintf("cl:user_sessions:%d", uid) }

// RedisStore is a gorilla/sessions Store that keeps values in Redis. The
// cookie only carries the signed session id.
type RedisStore struct {
	rdb        *redis.Client
	codecs     []securecookie.Codec
	serializer securecookie.GobEncoder
	defaultTTL time.Duration

	Options *sessions.Options
}

// NewRedisStore builds a store; defaultTTL applies to sessions whose MaxAge is 0.
func NewRedisStore(rdb *redis.Client, defaultTTL time.Duration, opts sessions.Options, keyPairs ...[]byte) *RedisStore {
	s := &RedisStore{
		rdb:        rdb,
		codecs:     securecookie.CodecsFromPairs(keyPairs...),
		defaultTTL: defaultTTL,
		Options:    &opts,
	}
	return s
}

// MaxAge bounds how old a signed cookie may be before it is rejected.
func (s *RedisStore) MaxAge(age int) {
	for _, c := range s.codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.Options
	sess.Options = &opts
	sess.IsNew = true

	ck, err := r.Cookie(name)
	if err != nil || ck.Value == "" {
		return sess, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, ck.Value, &id, s.codecs...); err != nil {
		// 签名无效或过期：当作新会话
		return sess, nil
	}
	found, err := s.load(r.Context(), id, sess)
	if err != nil {
		return sess, err
	}
	if found {
		sess.ID = id
		sess.IsNew = false
	}
	return sess, nil
}

func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	ctx := r.Context()
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.delete(ctx, sess.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if err := s.save(ctx, sess); err != nil {
		return err
	}
	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

// Regenerate drops the stored copy of the session and clears its id so the
// next Save issues a fresh one. Values are kept.
func (s *RedisStore) Regenerate(ctx context.Context, sess *sessions.Session) error {
	if sess.ID == "" {
		return nil
	}
	err := s.delete(ctx, sess.ID)
	sess.ID = ""
	return err
}

// RevokeAllForUser 删除该用户的所有会话
func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID uint) error {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ttl(sess *sessions.Session) time.Duration {
	if sess.Options.MaxAge > 0 {
		return time.Duration(sess.Options.MaxAge) * time.Second
	}
	return s.defaultTTL
}

func (s *RedisStore) load(ctx context.Context, id string, sess *sessions.Session) (bool, error) {
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if err := s.serializer.Deserialize(b, &sess.Values); err != nil {
		return false, fmt.Errorf("decode session: %w", err)
	}
	return true, nil
}

// 写入会话；用户索引的 TTL 只延长不缩短，保证 remember-me 会话始终可被撤销
var saveScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
if KEYS[2] then
  local ttl = tonumber(ARGV[2])
  redis.call('SADD', KEYS[2], ARGV[3])
  if redis.call('PTTL', KEYS[2]) < ttl then
    redis.call('PEXPIRE', KEYS[2], ttl)
  end
end
return 1
`)

func (s *RedisStore) save(ctx context.Context, sess *sessions.Session) error {
	b, err := s.serializer.Serialize(sess.Values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	keys := []string{key(sess.ID)}
	if uid, ok := UserID(sess); ok {
		keys = append(keys, userSetKey(uid))
	}
	err = saveScript.Run(ctx, s.rdb, keys, b, s.ttl(sess).Milliseconds(), sess.ID).Err()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) delete(ctx context.Context, id string) error {
	vals := map[interface{}]interface{}{}
	existing := &sessions.Session{Values: vals}
	found, _ := s.load(ctx, id, existing)

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if found {
		if uid, ok := UserID(existing); ok {
			pipe.SRem(ctx, userSetKey(uid), id)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// UserID returns the authenticated user id stored in the session.
func UserID(sess *sessions.Session) (uint, bool) {
	uid, ok := sess.Values[KeyUserID].(uint)
	return uid, ok && uid > 0
}

// String reads a string value, "" when absent.
func String(sess *sessions.Session, k string) string {
	v, _ := sess.Values[k].(string)
	return v
}

// Clear removes every value from the session.
func Clear(sess *sessions.Session) {
	for k := range sess.Values {
		delete(sess.Values, k)
	}
}
