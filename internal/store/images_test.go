package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/agroguard/internal/common"
)

func TestImageStoreSaveAndRemove(t *testing.T) {
	is, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	ref, err := is.Save(context.Background(), []byte("fake-jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Contains(t, ref, "file://")

	path, err := is.Path(ref)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake-jpeg", string(data))

	require.NoError(t, is.Remove(ref))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestImageStoreRejectsForeignReferences(t *testing.T) {
	is, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	_, err = is.Path("file:///etc/passwd")
	assert.Error(t, err)
	_, err = is.Path("https://example.org/leaf.jpg")
	assert.Error(t, err)
	assert.NoError(t, is.Remove("file:///etc/passwd"))

	_, err = is.Save(context.Background(), []byte("gif"), "image/gif")
	assert.ErrorIs(t, err, common.ErrValidation)
}
