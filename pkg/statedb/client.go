// Package statedb mirrors the adaptor's topology into Redis so other tools
// can read it without talking to the controller. Layout follows the SONiC
// STATE_DB convention: one hash per entry at "TABLE|key".
//
//	SWITCH_TABLE|<dpid>                       connected, capabilities, ports, updated
//	PORT_TABLE|<dpid>|<port>                  name, hw_addr, admin_status, oper_status, neighbors
//	LINK_TABLE|<dpid1>|<port1>|<dpid2>|<port2>  (canonical orientation)
//
// <dpid> is the datapath id as 16 hex digits.
package statedb

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Table names.
const (
	SwitchTable = "SWITCH_TABLE"
	PortTable   = "PORT_TABLE"
	LinkTable   = "LINK_TABLE"
)

// DefaultDB is the Redis database the mirror writes to (SONiC STATE_DB).
const DefaultDB = 6

// backend is the subset of Redis the mirror needs.
type backend interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options selects the Redis server. With SSHHost set, Redis is reached
// through an SSH tunnel and Addr is resolved on the SSH host
// (DefaultRemoteAddr if empty).
type Options struct {
	Addr          string
	DB            int
	SSHHost       string
	SSHUser       string
	SSHPass       string
	SSHKey        string
	SSHKnownHosts string
}

// Client reads and writes the mirror tables.
type Client struct {
	db     backend
	tunnel *SSHTunnel
}

// NewClient creates a client for the Redis server at addr.
func NewClient(addr string, db int) *Client {
	return &Client{db: newRedisBackend(addr, db)}
}

// Dial opens a client per opts, tunneling through SSH if requested, and
// checks the connection.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	addr := opts.Addr
	var tunnel *SSHTunnel
	if opts.SSHHost != "" {
		var err error
		tunnel, err = NewSSHTunnel(TunnelConfig{
			Host:       opts.SSHHost,
			User:       opts.SSHUser,
			Password:   opts.SSHPass,
			KeyFile:    opts.SSHKey,
			KnownHosts: opts.SSHKnownHosts,
			Remote:     opts.Addr,
		})
		if err != nil {
			return nil, err
		}
		addr = tunnel.LocalAddr()
	}

	c := &Client{db: newRedisBackend(addr, opts.DB), tunnel: tunnel}
	if err := c.db.Ping(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return c, nil
}

// Close closes the Redis connection and the tunnel, if any.
func (c *Client) Close() error {
	err := c.db.Close()
	if c.tunnel != nil {
		if terr := c.tunnel.Close(); err == nil {
			err = terr
		}
	}
	return err
}

// GetEntry reads a single entry. Returns (nil, nil) if it does not exist.
func (c *Client) GetEntry(ctx context.Context, table, key string) (map[string]string, error) {
	vals, err := c.db.HGetAll(ctx, table+"|"+key)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// Clear deletes every entry of the mirror tables.
func (c *Client) Clear(ctx context.Context) error {
	for _, table := range []string{SwitchTable, PortTable, LinkTable} {
		keys, err := c.db.Keys(ctx, table+"|*")
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.db.Del(ctx, keys...); err != nil {
			return err
		}
	}
	return nil
}

// redisBackend implements backend on go-redis.
type redisBackend struct {
	client *redis.Client
}

func newRedisBackend(addr string, db int) *redisBackend {
	return &redisBackend{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

func (r *redisBackend) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return r.client.HSet(ctx, key, args...).Err()
}

func (r *redisBackend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *redisBackend) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// Keys uses cursor-based SCAN (non-blocking, unlike KEYS *).
func (r *redisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (r *redisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisBackend) Close() error {
	return r.client.Close()
}

// memBackend keeps hashes in memory. Used by tests and dry runs.
type memBackend struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{hashes: make(map[string]map[string]string)}
}

// NewMemoryClient returns a client backed by an in-process hash store.
func NewMemoryClient() *Client {
	return &Client{db: newMemBackend()}
}

func (m *memBackend) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *memBackend) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memBackend) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.hashes, k)
	}
	return nil
}

func (m *memBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.hashes {
		// Keys never contain '/', so path.Match behaves like a Redis glob.
		if ok, _ := path.Match(pattern, k); ok || pattern == "*" {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memBackend) Ping(context.Context) error { return nil }

func (m *memBackend) Close() error { return nil }

func splitKey(key string) (table, entry string, ok bool) {
	return strings.Cut(key, "|")
}
