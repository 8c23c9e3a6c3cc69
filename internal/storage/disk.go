package storage

import (
	"os"
)

// DiskUsage returns the on-disk size of the database including its WAL and shared-memory
// sidecar files. In-memory databases report 0.
func (s *SQLiteStorage) DiskUsage() (int64, error) {
	if s.path == ":memory:" {
		return 0, nil
	}
	return DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
}

// DiskUsageBytes returns the total size in bytes of the given files.
// Missing files and empty paths contribute 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}
