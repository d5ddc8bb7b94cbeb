package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/clip-backend/pkg/clients"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisCfg := &cfg.RedisCfg{Addr: mr.Addr(), EmbeddingTTL: time.Hour}
	client := clients.NewRedisClient(redisCfg)
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheRepo(client, converter.NewTextEmbeddingConverter(), redisCfg, logger.Nop()), mr
}

func TestCacheRepo_SetGet(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetTextEmbedding(ctx, "clip:text:abc", []float32{0.6, 0.8}))

	got, err := repo.GetTextEmbedding(ctx, "clip:text:abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, got)
	assert.Equal(t, time.Hour, mr.TTL("clip:text:abc"))
}

func TestCacheRepo_Miss(t *testing.T) {
	repo, _ := newTestRepo(t)

	got, err := repo.GetTextEmbedding(context.Background(), "clip:text:none")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheRepo_Expired(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SetTextEmbedding(ctx, "k", []float32{1}))

	mr.FastForward(2 * time.Hour)

	got, err := repo.GetTextEmbedding(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheRepo_CorruptedEntryEvicted(t *testing.T) {
	tests := map[string]string{
		"not json":      "{broken",
		"dims mismatch": `{"dims":3,"vector":[1,2],"cached_at":0}`,
		"empty vector":  `{"dims":0,"vector":[],"cached_at":0}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			repo, mr := newTestRepo(t)
			require.NoError(t, mr.Set("k", raw))

			got, err := repo.GetTextEmbedding(context.Background(), "k")

			require.NoError(t, err)
			assert.Nil(t, got)
			assert.False(t, mr.Exists("k"))
		})
	}
}

func TestCacheRepo_Unavailable(t *testing.T) {
	repo, mr := newTestRepo(t)
	mr.Close()

	_, err := repo.GetTextEmbedding(context.Background(), "k")

	assert.Error(t, err)
}
