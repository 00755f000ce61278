//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"testing"

	"github.com/go-redis/redis/v8"
)

// Redis is a direct handle on one database of the test Redis, for seeding
// state and checking what the mirror wrote without going through it.
type Redis struct {
	t      *testing.T
	client *redis.Client
}

// OpenRedis connects to db on the test Redis, skipping the test if none is
// reachable. The connection is closed when the test ends.
func OpenRedis(t *testing.T, db int) *Redis {
	t.Helper()
	SkipIfNoRedis(t)

	client := redis.NewClient(&redis.Options{Addr: RedisAddr(), DB: db})
	t.Cleanup(func() { client.Close() })
	return &Redis{t: t, client: client}
}

// Addr returns the server address.
func (r *Redis) Addr() string {
	return r.client.Options().Addr
}

// Flush empties the database.
func (r *Redis) Flush() {
	r.t.Helper()
	if err := r.client.FlushDB(context.Background()).Err(); err != nil {
		r.t.Fatalf("flushing DB %d: %v", r.client.Options().DB, err)
	}
}

// Seed loads a JSON file of the form {"TABLE": {"key": {"field": "value"}}}.
// Each entry becomes the hash "TABLE|key".
func (r *Redis) Seed(file string) {
	r.t.Helper()

	data, err := os.ReadFile(file)
	if err != nil {
		r.t.Fatalf("reading seed file %s: %v", file, err)
	}
	var tables map[string]map[string]map[string]string
	if err := json.Unmarshal(data, &tables); err != nil {
		r.t.Fatalf("parsing seed file %s: %v", file, err)
	}
	for table, entries := range tables {
		for key, fields := range entries {
			r.Put(table, key, fields)
		}
	}
}

// Put writes one hash entry. An empty field map still creates the key,
// with a "NULL" placeholder field.
func (r *Redis) Put(table, key string, fields map[string]string) {
	r.t.Helper()

	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if len(args) == 0 {
		args = append(args, "NULL", "")
	}
	if err := r.client.HSet(context.Background(), table+"|"+key, args...).Err(); err != nil {
		r.t.Fatalf("writing %s|%s: %v", table, key, err)
	}
}

// Entry returns the fields of table|key, empty if it does not exist.
func (r *Redis) Entry(table, key string) map[string]string {
	r.t.Helper()

	vals, err := r.client.HGetAll(context.Background(), table+"|"+key).Result()
	if err != nil {
		r.t.Fatalf("reading %s|%s: %v", table, key, err)
	}
	return vals
}

// Exists reports whether table|key exists.
func (r *Redis) Exists(table, key string) bool {
	r.t.Helper()

	n, err := r.client.Exists(context.Background(), table+"|"+key).Result()
	if err != nil {
		r.t.Fatalf("checking %s|%s: %v", table, key, err)
	}
	return n > 0
}

// Keys returns the sorted entry keys of table, without the table prefix.
func (r *Redis) Keys(table string) []string {
	r.t.Helper()

	var keys []string
	iter := r.client.Scan(context.Background(), 0, table+"|*", 100).Iterator()
	for iter.Next(context.Background()) {
		keys = append(keys, iter.Val()[len(table)+1:])
	}
	if err := iter.Err(); err != nil {
		r.t.Fatalf("scanning %s: %v", table, err)
	}
	sort.Strings(keys)
	return keys
}
