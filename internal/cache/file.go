package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileClient guarda todas las keys en un único documento JSON.
// Cada mutación reescribe el documento con write-temp → fsync → rename, así
// un crash deja el documento viejo o el nuevo, nunca uno a medias.
type fileClient struct {
	path   string
	prefix string

	mu   sync.Mutex
	data map[string]fileEntry
}

type fileEntry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e fileEntry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// NewFile abre (o crea en la primera escritura) el documento en path.
func NewFile(path, prefix string) (*fileClient, error) {
	if path == "" {
		return nil, errors.New("cache: file driver requires a path")
	}
	c := &fileClient{path: path, prefix: prefix, data: map[string]fileEntry{}}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.data); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", path, err)
	}
	return c, nil
}

func (c *fileClient) key(k string) string { return prefixed(c.prefix, k) }

func (c *fileClient) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[c.key(key)]
	if !ok || e.expired(time.Now()) {
		return "", ErrNotFound
	}
	return e.Value, nil
}

func (c *fileClient) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if e, ok := c.data[c.key(k)]; ok && !e.expired(now) {
			out[k] = e.Value
		}
	}
	return out, nil
}

func (c *fileClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := fileEntry{Value: value}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		e.ExpiresAt = &exp
	}
	next := c.cloneLocked()
	next[c.key(key)] = e
	return c.commitLocked(next)
}

func (c *fileClient) SetMany(ctx context.Context, entries map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cloneLocked()
	for k, v := range entries {
		next[c.key(k)] = fileEntry{Value: v}
	}
	return c.commitLocked(next)
}

func (c *fileClient) Delete(ctx context.Context, key string) error {
	return c.DeleteMany(ctx, key)
}

func (c *fileClient) DeleteMany(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cloneLocked()
	changed := false
	for _, k := range keys {
		if _, ok := next[c.key(k)]; ok {
			delete(next, c.key(k))
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return c.commitLocked(next)
}

func (c *fileClient) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (c *fileClient) Ping(ctx context.Context) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	return nil
}

func (c *fileClient) Close() error { return nil }

func (c *fileClient) cloneLocked() map[string]fileEntry {
	now := time.Now()
	out := make(map[string]fileEntry, len(c.data)+3)
	for k, e := range c.data {
		if !e.expired(now) {
			out[k] = e
		}
	}
	return out
}

// commitLocked persiste next y solo entonces lo publica en memoria.
func (c *fileClient) commitLocked(next map[string]fileEntry) error {
	b, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(c.path, b, 0o600); err != nil {
		return err
	}
	c.data = next
	return nil
}

func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".chatpal-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	// Windows: rename sobre un destino existente puede fallar.
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}
