package session

import (
	"os"
	"path/filepath"
)

func removeIndex(cacheDir string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(filepath.Join(cacheDir, IndexFile+suffix)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
