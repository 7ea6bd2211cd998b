package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotStoreValidatesInput(t *testing.T) {
	_, err := NewSnapshotStore("", false, "k", "s", "bucket", nil)
	assert.Error(t, err)
	_, err = NewSnapshotStore("http://localhost:9000", false, "k", "s", " ", nil)
	assert.Error(t, err)

	store, err := NewSnapshotStore("http://localhost:9000", false, "k", "s", "catalog", nil)
	require.NoError(t, err)
	assert.Equal(t, "catalog", store.bucket)
}

func TestCleanKeyAndEndpoint(t *testing.T) {
	key, err := cleanKey(" /catalog/latest.json/ ")
	require.NoError(t, err)
	assert.Equal(t, "catalog/latest.json", key)

	_, err = cleanKey("//")
	assert.Error(t, err)

	assert.Equal(t, "minio:9000", parseEndpoint("https://minio:9000"))
	assert.Equal(t, "minio:9000", parseEndpoint("minio:9000"))
}
