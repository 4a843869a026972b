package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T, prefix string) (*redisClient, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisFromClient(rdb, prefix), mr
}

func backends(t *testing.T) map[string]Client {
	t.Helper()
	fc, err := NewFile(filepath.Join(t.TempDir(), "state", "session.json"), "test")
	require.NoError(t, err)
	rc, _ := newMiniredisClient(t, "test")
	return map[string]Client{
		"memory": NewMemory("test"),
		"file":   fc,
		"redis":  rc,
	}
}

func TestClient_Contract(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Ping(ctx))

			_, err := c.Get(ctx, "missing")
			assert.True(t, IsNotFound(err))

			require.NoError(t, c.Set(ctx, "a", "1", 0))
			v, err := c.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "1", v)

			require.NoError(t, c.SetMany(ctx, map[string]string{"x": "10", "y": "20", "z": "30"}))
			for k, want := range map[string]string{"x": "10", "y": "20", "z": "30"} {
				got, err := c.Get(ctx, k)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			got, err := c.GetMany(ctx, "x", "z", "never-set")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"x": "10", "z": "30"}, got)

			got, err = c.GetMany(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)

			require.NoError(t, c.DeleteMany(ctx, "x", "y", "z", "never-set"))
			for _, k := range []string{"x", "y", "z"} {
				ok, err := c.Exists(ctx, k)
				require.NoError(t, err)
				assert.False(t, ok, k)
			}

			require.NoError(t, c.Delete(ctx, "a"))
			require.NoError(t, c.Delete(ctx, "a"), "deleting twice is not an error")
			_, err = c.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFile_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	c1, err := NewFile(path, "chatpal")
	require.NoError(t, err)
	require.NoError(t, c1.SetMany(ctx, map[string]string{"credential": "tok", "user": "{}"}))

	c2, err := NewFile(path, "chatpal")
	require.NoError(t, err)
	v, err := c2.Get(ctx, "credential")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_RejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFile(path, "")
	assert.Error(t, err)
}

func TestFile_TTL(t *testing.T) {
	ctx := context.Background()
	c, err := NewFile(filepath.Join(t.TempDir(), "s.json"), "")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestRedis_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredisClient(t, "chatpal")

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.True(t, mr.Exists("chatpal:k"))
	assert.Equal(t, time.Minute, mr.TTL("chatpal:k"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestRedis_GetManySkipsMissingKeys(t *testing.T) {
	ctx := context.Background()
	c, mr := newMiniredisClient(t, "chatpal")
	require.NoError(t, mr.Set("chatpal:credential", "tok"))
	require.NoError(t, mr.Set("chatpal:user", `{"uid":"1"}`))
	require.NoError(t, mr.Set("activeProvider", "google"), "sin prefijo no cuenta")

	got, err := c.GetMany(ctx, "credential", "user", "activeProvider")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"credential": "tok", "user": `{"uid":"1"}`}, got)

	mr.SetError("LOADING")
	_, err = c.GetMany(ctx, "credential")
	assert.Error(t, err)
}

func TestNew_Drivers(t *testing.T) {
	c, err := New(Config{Driver: ""})
	require.NoError(t, err)
	assert.IsType(t, &memoryClient{}, c)

	c, err = New(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "x.json")})
	require.NoError(t, err)
	assert.IsType(t, &fileClient{}, c)

	_, err = New(Config{Driver: "file"})
	assert.Error(t, err)

	_, err = New(Config{Driver: "etcd"})
	assert.Error(t, err)
}
