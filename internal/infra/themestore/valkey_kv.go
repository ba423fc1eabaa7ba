package themestore

import (
	"context"

	"github.com/valkey-io/valkey-go"
)

// ValkeyKV persists theme state in a Valkey-compatible database. Expiry is
// deliberately not set: staleness is decided by the domain against the
// timestamps stored inside the values.
type ValkeyKV struct {
	client valkey.Client
	prefix string
}

// NewValkeyKV constructs a backend with the given key prefix.
func NewValkeyKV(client valkey.Client, prefix string) *ValkeyKV {
	if prefix == "" {
		prefix = "sundial"
	}
	return &ValkeyKV{client: client, prefix: prefix}
}

func (v *ValkeyKV) Get(ctx context.Context, key string) (string, bool, error) {
	resp := v.client.Do(ctx, v.client.B().Get().Key(v.key(key)).Build())
	value, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (v *ValkeyKV) Set(ctx context.Context, key, value string) error {
	return v.client.Do(ctx, v.client.B().Set().Key(v.key(key)).Value(value).Build()).Error()
}

func (v *ValkeyKV) Remove(ctx context.Context, key string) error {
	return v.client.Do(ctx, v.client.B().Del().Key(v.key(key)).Build()).Error()
}

func (v *ValkeyKV) key(key string) string {
	return v.prefix + ":" + key
}

var _ KV = (*ValkeyKV)(nil)
