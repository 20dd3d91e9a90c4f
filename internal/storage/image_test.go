package storage

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/reswap-api/internal/imaging"
)

func TestStoreImage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://cdn")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	obj, res, err := StoreImage(context.Background(), s, "items", &buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "items/"))
	assert.Equal(t, 8, res.Width)

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(obj.Key)))
	require.NoError(t, err)
	assert.Equal(t, res.Data, stored)
}

func TestStoreImage_RejectsNonImage(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	_, _, err = StoreImage(context.Background(), s, "items", strings.NewReader("plain text"))
	assert.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
}
