package core

// input.go prepares uploaded bytes for decoding.
//
// BoQ files hold hundreds of rows, so the whole file is buffered. Before
// decoding, the buffer is capped at the configured size, stripped of a
// UTF-8 byte order mark (Windows Excel adds one to "CSV UTF-8" exports)
// and made valid UTF-8 by replacing broken sequences with U+FFFD.

import (
	"bytes"
	"fmt"
	"io"
)

// DefaultMaxFileSize caps an imported file when no limit is configured.
const DefaultMaxFileSize int64 = 10 << 20

// FileTooLargeError reports an upload over the configured size limit.
type FileTooLargeError struct {
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: limit is %d bytes", e.Limit)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readInput buffers r up to maxBytes. Read failures come back as *IOError.
func readInput(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, &IOError{Op: "read upload", Err: err}
	}
	if int64(len(data)) > maxBytes {
		return nil, &FileTooLargeError{Limit: maxBytes}
	}
	return data, nil
}

// sanitizeText strips a leading BOM and replaces invalid UTF-8.
func sanitizeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	return bytes.ToValidUTF8(data, []byte("�"))
}
