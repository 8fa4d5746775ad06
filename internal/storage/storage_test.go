package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanPath(t *testing.T) {
	valid := []string{"2024/05/abc.pdf", "a/b/../c.png"}
	for _, p := range valid {
		_, err := CleanPath(p)
		assert.NoError(t, err, p)
	}

	invalid := []string{"", "../secret", "/etc/passwd", "..", ".", "a/../../b", `a\b`}
	for _, p := range invalid {
		_, err := CleanPath(p)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
}

func TestNewObjectName(t *testing.T) {
	name := NewObjectName("Photo.JPG", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(name, "2024/05/"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	storagePath, size, err := s.Upload(ctx, "sheet.pdf", "application/pdf", strings.NewReader("measurement sheet"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("measurement sheet")), size)

	rc, err := s.Download(ctx, storagePath)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "measurement sheet", string(body))

	require.NoError(t, s.Delete(ctx, storagePath))
	require.NoError(t, s.Delete(ctx, storagePath))

	_, err = s.Download(ctx, storagePath)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.Delete(context.Background(), "../x"), ErrInvalidPath)
}
