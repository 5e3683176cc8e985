package sandbox

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCollectOutputs(t *testing.T) {
	log := zaptest.NewLogger(t)
	const maxFileBytes = 1024

	t.Run("LexicographicOrder", func(t *testing.T) {
		dir := t.TempDir()
		// Written out of order on purpose
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bee"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("ay"), 0644))

		files := collectOutputs(dir, maxFileBytes, log)
		require.Len(t, files, 2)
		assert.Equal(t, "a.txt", files[0].Name)
		assert.Equal(t, "b.txt", files[1].Name)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		dir := t.TempDir()
		original := []byte{0x00, 0x01, 0xff, 'p', 'n', 'g'}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "img.png"), original, 0644))

		files := collectOutputs(dir, maxFileBytes, log)
		require.Len(t, files, 1)
		assert.Equal(t, int64(len(original)), files[0].Size)

		decoded, err := base64.StdEncoding.DecodeString(files[0].Data)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	})

	t.Run("OversizedSkippedSilently", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "big.bin"), make([]byte, maxFileBytes), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "edge.bin"), make([]byte, maxFileBytes-1), 0644))

		files := collectOutputs(dir, maxFileBytes, log)
		// The cap is exclusive: a file exactly at the ceiling is dropped
		require.Len(t, files, 1)
		assert.Equal(t, "edge.bin", files[0].Name)
	})

	t.Run("SubdirectoriesIgnored", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "deep.txt"), []byte("x"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("y"), 0644))

		files := collectOutputs(dir, maxFileBytes, log)
		require.Len(t, files, 1)
		assert.Equal(t, "top.txt", files[0].Name)
	})

	t.Run("MissingDir", func(t *testing.T) {
		files := collectOutputs(filepath.Join(t.TempDir(), "gone"), maxFileBytes, log)
		assert.NotNil(t, files)
		assert.Empty(t, files)
	})

	t.Run("UnreadableSkipped", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("file permissions are not enforced for root")
		}
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "locked.txt"), []byte("x"), 0000))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "open.txt"), []byte("y"), 0644))

		files := collectOutputs(dir, maxFileBytes, log)
		require.Len(t, files, 1)
		assert.Equal(t, "open.txt", files[0].Name)
	})
}
