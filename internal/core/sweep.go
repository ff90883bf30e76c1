package core

import (
	"os"

	"github.com/fedragon/go-takeout/internal/db"

	"go.uber.org/zap"
)

// Sweep drops hash-cache entries for files that no longer exist.
func Sweep(repo db.Repository, logger *zap.Logger) error {
	logger.Info("Sweeping stale entries...")

	removed, err := repo.Sweep(func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
	if err != nil {
		return err
	}

	logger.Info("Swept stale entries", zap.Int("removed", removed))
	return nil
}
