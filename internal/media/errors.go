package media

import (
	"errors"
	"fmt"
)

// Storage and payload sentinels shared by the providers and the fetcher.
var (
	ErrObjectNotFound      = errors.New("media object not found")
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	ErrAssetTooLarge       = errors.New("media payload too large")
	ErrPathTraversal       = errors.New("storage key escapes its root")
	ErrEmptyKey            = errors.New("storage key is required")
)

// SizeError reports a payload over the accepted size. It matches ErrAssetTooLarge.
type SizeError struct {
	Limit int64
	// Size is the declared or observed size; zero when only "more than Limit" is known.
	Size int64
}

func (e *SizeError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("%v: %d bytes exceeds max %d", ErrAssetTooLarge, e.Size, e.Limit)
	}
	return fmt.Sprintf("%v: max %d bytes", ErrAssetTooLarge, e.Limit)
}

func (e *SizeError) Is(target error) bool { return target == ErrAssetTooLarge }
