package runtime

import "errors"

var (
	ErrRuntime                = errors.New("runtime error")
	ErrEmptyIndex             = errors.New("empty image index")
	ErrImageNotFound          = errors.New("image not found")
	ErrImageInUse             = errors.New("image is in use")
	ErrUnsupportedCompression = errors.New("unsupported archive compression")
)
