package pathnorm

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelative(t *testing.T) {
	root := filepath.Join("/", "data", "tree")

	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "direct child",
			path: filepath.Join(root, "a.txt"),
			want: "a.txt",
		},
		{
			name: "nested child",
			path: filepath.Join(root, "sub", "deep", "b.txt"),
			want: "sub/deep/b.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Relative(root, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeComposesNFC(t *testing.T) {
	// "é" as a combining sequence (NFD) vs precomposed (NFC).
	decomposed := "café"
	precomposed := "café"

	got, err := Normalize(decomposed)
	require.NoError(t, err)
	assert.Equal(t, precomposed, got)

	// Two spellings of the same visible text land on the same key.
	other, err := Normalize(precomposed)
	require.NoError(t, err)
	assert.Equal(t, got, other)
}

func TestNormalizeRejectsInvalidUTF8(t *testing.T) {
	_, err := Normalize("bad\xff\xfename")
	require.Error(t, err)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Contains(t, encErr.Path, "bad")
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a.txt", Join("", "a.txt"))
	assert.Equal(t, "a.txt", Join(".", "a.txt"))
	assert.Equal(t, "sub/a.txt", Join("sub", "a.txt"))
	assert.Equal(t, "sub/deep/a.txt", Join("sub/deep", "a.txt"))
}
