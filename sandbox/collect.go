package sandbox

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// collectOutputs converts the immediate children of the output directory
// into the result's file list. The scan is deliberately non-recursive:
// subdirectories and their contents are ignored. Entries are visited in
// lexicographic filename order. Regular files strictly under maxFileBytes
// are read fully and base64-encoded; oversized, non-regular, or unreadable
// entries are skipped without aborting the rest.
func collectOutputs(dir string, maxFileBytes int64, log *zap.Logger) []OutputFile {
	files := []OutputFile{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Output dir may be gone if the snippet removed it; not a fault.
		log.Debug("output dir scan failed", zap.Error(err))
		return files
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() >= maxFileBytes {
			log.Debug("skipping oversized output file",
				zap.String("name", entry.Name()),
				zap.Int64("size", info.Size()),
			)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn("skipping unreadable output file",
				zap.String("name", entry.Name()),
				zap.Error(err),
			)
			continue
		}

		files = append(files, OutputFile{
			Name: entry.Name(),
			Data: base64.StdEncoding.EncodeToString(data),
			Size: int64(len(data)),
		})
	}

	return files
}
