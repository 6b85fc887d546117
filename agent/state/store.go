package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session key is incomplete")
)

const (
	defaultStoreKeyPrefix = "concierge:"
	defaultStoreTTL       = 24 * time.Hour
	defaultLockTTL        = 30 * time.Second
	defaultLockPoll       = 50 * time.Millisecond
	maxResponseSizeBytes  = 2 << 20

	// Deletes the lock only if it still holds our token.
	releaseLockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
	// Extends the lease only if it still holds our token.
	renewLockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) else return 0 end`
)

// Store persists booking sessions keyed by (tenant, phone). Lock serializes
// turns for one key; callers hold it across Load..Save/Delete.
type Store interface {
	Lock(ctx context.Context, key Key) (func(), error)
	Load(ctx context.Context, key Key) (*BookingSession, error)
	Save(ctx context.Context, st *BookingSession) error
	Delete(ctx context.Context, key Key) error
}

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithLockTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithLockPoll(every time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		if every > 0 {
			s.lockPoll = every
		}
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

var _ Store = (*UpstashRedisStore)(nil)

// UpstashRedisStore persists BookingSession in Upstash Redis via REST. The
// per-key lock is a SET NX PX lease, so several instances can share it. The
// holder renews the lease every lockTTL/3, so a turn may run past lockTTL;
// a crashed holder blocks the customer for at most lockTTL.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	lockTTL    time.Duration
	lockPoll   time.Duration

	local KeyedLocker
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
		lockTTL:   defaultLockTTL,
		lockPoll:  defaultLockPoll,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Lock(ctx context.Context, key Key) (func(), error) {
	lockKey, err := s.redisKey(key, "lock")
	if err != nil {
		return nil, err
	}

	unlockLocal, err := s.local.Lock(ctx, lockKey)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	ticker := time.NewTicker(s.lockPoll)
	defer ticker.Stop()

	for {
		resp, err := s.exec(ctx, []any{"SET", lockKey, token, "NX", "PX", s.lockTTL.Milliseconds()})
		if err != nil {
			unlockLocal()
			return nil, err
		}
		if acquired(resp.Result) {
			break
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	renewDone := make(chan struct{})
	go s.renewLock(lockKey, token, stop, renewDone)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewDone
			// The turn's ctx may already be cancelled; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = s.exec(releaseCtx, []any{"EVAL", releaseLockScript, 1, lockKey, token})
			unlockLocal()
		})
	}, nil
}

// renewLock extends the lease every third of its TTL until stop is closed.
// It gives up once the key no longer holds token.
func (s *UpstashRedisStore) renewLock(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	every := max(s.lockTTL/3, time.Millisecond)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), every)
		resp, err := s.exec(ctx, []any{"EVAL", renewLockScript, 1, lockKey, token, s.lockTTL.Milliseconds()})
		cancel()
		switch {
		case err != nil:
			log.Warn().Err(err).Str("lock_key", lockKey).Msg("renew session lock failed")
		case !renewed(resp.Result):
			log.Error().Str("lock_key", lockKey).Msg("session lock lease lost")
			return
		}
	}
}

func (s *UpstashRedisStore) Load(ctx context.Context, key Key) (*BookingSession, error) {
	redisKey, err := s.redisKey(key, "session")
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", redisKey})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrStateNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}

	var st BookingSession
	if err := json.Unmarshal([]byte(encoded), &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}

	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session state loaded from store: %w", err)
	}

	return &st, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, st *BookingSession) error {
	if st == nil {
		return ErrNilSessionState
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	} else {
		st.UpdatedAt = st.UpdatedAt.UTC()
	}

	redisKey, err := s.redisKey(st.Key(), "session")
	if err != nil {
		return err
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	cmd := []any{"SET", redisKey, string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}

	if _, err := s.exec(ctx, cmd); err != nil {
		return err
	}

	return nil
}

func (s *UpstashRedisStore) Delete(ctx context.Context, key Key) error {
	redisKey, err := s.redisKey(key, "session")
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", redisKey})
	return err
}

func (s *UpstashRedisStore) redisKey(key Key, kind string) (string, error) {
	if !key.Valid() {
		return "", ErrInvalidSession
	}
	prefix := strings.TrimSpace(s.keyPrefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + strings.TrimSpace(key.TenantID) + ":" + strings.TrimSpace(key.Phone) + ":" + kind, nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func renewed(result json.RawMessage) bool {
	var v int64
	if err := json.Unmarshal(bytes.TrimSpace(result), &v); err != nil {
		return false
	}
	return v == 1
}

func acquired(result json.RawMessage) bool {
	var v string
	if err := json.Unmarshal(bytes.TrimSpace(result), &v); err != nil {
		return false
	}
	return v == "OK"
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
