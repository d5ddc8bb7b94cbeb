package cfg

import (
	"bytes"
	"testing"
	"time"

	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "clip")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "clip")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "clip.images.indexed")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	c, err := Load(logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, BackendRemote, c.Engine.Backend)
	assert.Equal(t, 4, c.Engine.Threads)
	assert.Equal(t, 1, c.Engine.Verbosity)
	assert.Equal(t, "ml-service:50051", c.Ml.Addr)
	assert.Equal(t, 4, c.Ml.BatchSize)
	assert.Equal(t, 30*time.Second, c.Ml.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, uint64(512), c.Qdrant.VectorSize)
	assert.Equal(t, "clip_images", c.Qdrant.QdrantCollectionName)
	assert.Equal(t, 24*time.Hour, c.Redis.EmbeddingTTL)
	assert.Equal(t, 5, c.Index.SearchLimit)
	assert.Equal(t, "8080", c.Http.Port)
	assert.Equal(t, "8091", c.Grpc.Port)
}

func TestLoad_EngineOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENGINE_BACKEND", "ClipCpp")
	t.Setenv("MODEL_PATH", "/models/clip.gguf")
	t.Setenv("ENGINE_THREADS", "12")
	t.Setenv("ML_TIMEOUT", "5s")

	c, err := Load(logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, BackendClipCpp, c.Engine.Backend)
	assert.Equal(t, "/models/clip.gguf", c.Engine.ModelPath)
	assert.Equal(t, 12, c.Engine.Threads)
	assert.Equal(t, 5*time.Second, c.Ml.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"unknown backend":   {"ENGINE_BACKEND", "onnx"},
		"zero threads":      {"ENGINE_THREADS", "0"},
		"bad verbosity":     {"MODEL_VERBOSITY", "loud"},
		"bad duration":      {"ML_TIMEOUT", "soon"},
		"bad batch size":    {"INDEX_BATCH_SIZE", "-1"},
		"bad qdrant port":   {"QDRANT_GRPC_PORT", "qdrant"},
		"bad redis ttl":     {"EMBEDDING_TTL", "1 day"},
		"bad ml concurrent": {"ML_MAX_CONCURRENT", "0"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(kv[0], kv[1])

			_, err := Load(logger.Nop())
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAFKA_TOPIC", "")

	_, err := Load(logger.Nop())

	assert.Error(t, err)
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("SOME_INT", "x")

	v, err := parseIntEnv("SOME_INT", 7)

	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
	assert.Equal(t, 7, v)
}

func TestLoad_NonPositiveValueIsLogged(t *testing.T) {
	tests := map[string]struct {
		key  string
		want string
	}{
		"engine threads":  {key: "ENGINE_THREADS", want: "ENGINE_THREADS must be positive, got 0"},
		"ml batch size":   {key: "ML_BATCH_SIZE", want: "ML_BATCH_SIZE must be positive, got 0"},
		"ml retries":      {key: "ML_MAX_RETRIES", want: "ML_MAX_RETRIES must be positive, got 0"},
		"search limit":    {key: "SEARCH_DEFAULT_LIMIT", want: "SEARCH_DEFAULT_LIMIT must be positive, got 0"},
		"index max image": {key: "INDEX_MAX_IMAGES", want: "INDEX_MAX_IMAGES must be positive, got 0"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, "0")

			var buf bytes.Buffer
			_, err := Load(logger.New(&buf, "error", "text"))

			require.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestParsePositiveIntEnv(t *testing.T) {
	t.Setenv("SOME_INT", "-3")

	v, err := parsePositiveIntEnv("SOME_INT", 7)

	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
	assert.Equal(t, 7, v)
}
