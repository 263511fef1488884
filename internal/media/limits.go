package media

import (
	"errors"
	"io"
)

// MaxAssetBytes is the Bot API download cap and the default fetch limit.
const MaxAssetBytes int64 = 20 << 20

// CheckDeclaredSize rejects a declared length (such as Content-Length) above limit.
// Negative sizes mean unknown and pass.
func CheckDeclaredSize(size, limit int64) error {
	if limit > 0 && size > limit {
		return &SizeError{Limit: limit, Size: size}
	}
	return nil
}

// ReadAllWithLimit buffers reader, failing with a *SizeError once more than limit
// bytes arrive. The declared size is not trusted.
func ReadAllWithLimit(reader io.Reader, limit int64) ([]byte, error) {
	if reader == nil {
		return nil, errors.New("nil reader")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &SizeError{Limit: limit}
	}
	return data, nil
}
