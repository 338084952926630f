package descriptor

import "errors"

var (
	ErrInvalidDescriptor = errors.New("invalid build descriptor")
	ErrUndefinedArg      = errors.New("undefined build argument")
	ErrRender            = errors.New("descriptor rendering failed")
)
