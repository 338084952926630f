package pipeline

import "errors"

var (
	ErrUsage         = errors.New("usage error")
	ErrImport        = errors.New("import failed")
	ErrBuild         = errors.New("build failed")
	ErrCleanup       = errors.New("cleanup failed")
	ErrPipelineUsed  = errors.New("pipeline already ran")
	ErrMisconfigured = errors.New("pipeline misconfigured")
)
