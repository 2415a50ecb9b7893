package archive

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// CleanOldArchives removes archives in dir older than the retention window.
// Both ZIPs and combined PDFs live there. Returns how many were removed.
func CleanOldArchives(dir string, retention time.Duration, log *zap.Logger) (int, error) {
	var files []string
	for _, pattern := range []string{"*.zip", "*.pdf"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			log.Error("archive cleanup glob", zap.Error(err))
			return 0, err
		}
		files = append(files, matches...)
	}

	cutoff := time.Now().Add(-retention)
	cleaned := 0

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(f); err != nil {
				log.Warn("failed to remove archive", zap.String("path", f), zap.Error(err))
			} else {
				cleaned++
			}
		}
	}

	if cleaned > 0 {
		log.Info("cleaned up old archives", zap.Int("count", cleaned))
	}
	return cleaned, nil
}
