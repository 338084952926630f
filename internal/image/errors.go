package image

import "errors"

var (
	ErrInvalidRef = errors.New("invalid image reference")
)
