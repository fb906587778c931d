package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ErrBinaryFile is returned for files that look binary.
var ErrBinaryFile = errors.New("file appears to be binary")

const sniffLen = 1024

// TruncationMarker separates the head and tail of an oversize file.
const TruncationMarker = "\n\n[... content truncated (file too large) ...]\n\n"

// Content is a file read for analysis.
type Content struct {
	Text      string
	Size      int64
	Truncated bool
}

// ReadFileContent reads absPath for analysis. Files larger than maxSize bytes
// keep their first and last maxSize/2 bytes around TruncationMarker; a
// maxSize of 0 disables the limit.
func ReadFileContent(absPath string, maxSize int64) (Content, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return Content{}, fmt.Errorf("file not found or stat error: %w", err)
	}

	if info.IsDir() {
		return Content{}, fmt.Errorf("path '%s' is a directory, not a file", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Content{}, fmt.Errorf("error reading file: %w", err)
	}

	if isBinary(data) {
		return Content{Size: int64(len(data))}, fmt.Errorf("'%s': %w", filepath.Base(absPath), ErrBinaryFile)
	}

	size := int64(len(data))
	if maxSize > 0 && size > maxSize {
		logrus.Warnf("File '%s' (%d bytes) is too large. Sending head and tail only.", filepath.Base(absPath), size)
		half := maxSize / 2

		return Content{
			Text:      string(data[:half]) + TruncationMarker + string(data[size-half:]),
			Size:      size,
			Truncated: true,
		}, nil
	}

	logrus.Debugf("Read complete file '%s' (%d bytes).", filepath.Base(absPath), size)

	return Content{Text: string(data), Size: size}, nil
}

// isBinary reports whether a NUL byte appears in the first sniffLen bytes.
func isBinary(data []byte) bool {
	n := min(len(data), sniffLen)
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}

	return false
}
