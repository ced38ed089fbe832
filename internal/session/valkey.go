package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/valkey-io/valkey-go"
)

// DefaultValkeyKeyPrefix prefixes every session key.
const DefaultValkeyKeyPrefix = "agentcal:session:"

// ValkeyConfig holds connection settings for the Valkey backend.
type ValkeyConfig struct {
	// Addr is the server address, e.g. "valkey.namespace.svc:6379".
	Addr     string
	Password string
	DB       int

	TLSEnabled bool
	// TLSCAFile is an optional CA bundle for servers signed by a private CA.
	TLSCAFile string

	KeyPrefix string
	// TTL is applied to every key on save so idle sessions expire server
	// side as well.
	TTL time.Duration
}

// ValkeyStore keeps sessions in Valkey, shared by every replica of the
// service.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore connects to Valkey.
func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	opt := valkey.ClientOption{
		InitAddress: []string{cfg.Addr},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}
	if cfg.TLSEnabled {
		tlsConfig, err := valkeyTLSConfig(cfg.TLSCAFile)
		if err != nil {
			return nil, err
		}
		opt.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	return newValkeyStore(client, cfg), nil
}

func newValkeyStore(client valkey.Client, cfg ValkeyConfig) *ValkeyStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultValkeyKeyPrefix
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: cfg.TTL}
}

func valkeyTLSConfig(caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return tlsConfig, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read valkey CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

func (s *ValkeyStore) key(user string) string {
	return s.prefix + user
}

// Load implements Store.
func (s *ValkeyStore) Load(ctx context.Context, user string) (*Session, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(user)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Save implements Store.
func (s *ValkeyStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	var cmd valkey.Completed
	if secs := int64(s.ttl / time.Second); secs > 0 {
		cmd = s.client.B().Set().Key(s.key(sess.User)).Value(string(data)).ExSeconds(secs).Build()
	} else {
		cmd = s.client.B().Set().Key(s.key(sess.User)).Value(string(data)).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *ValkeyStore) Delete(ctx context.Context, user string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Del().Key(s.key(user)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

// DeleteIdleBefore implements Store. Valkey expires idle keys through
// their TTL, so there is nothing to sweep.
func (s *ValkeyStore) DeleteIdleBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ping verifies connectivity.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close implements Store.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
