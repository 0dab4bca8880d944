package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogRotation renames the active log file once it grows past maxSize.
type LogRotation struct {
	maxSize  int64
	now      func() time.Time
	failures int
}

func NewLogRotation(maxSize int64) *LogRotation {
	return &LogRotation{
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (lr *LogRotation) ShouldRotate(written int64) bool {
	// back off after repeated rename failures
	if lr.failures >= 3 {
		return false
	}
	return lr.maxSize > 0 && written >= lr.maxSize
}

func (lr *LogRotation) Failed() {
	lr.failures++
}

func (lr *LogRotation) Rotate(path string) (string, error) {
	timestamp := lr.now().Format("20060102-150405.000")
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]

	newPath := fmt.Sprintf("%s-%s%s", base, timestamp, ext)

	err := os.Rename(path, newPath)
	return newPath, err
}
