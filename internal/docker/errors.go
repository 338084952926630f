package docker

import "errors"

var (
	ErrDocker        = errors.New("docker error")
	ErrImageNotFound = errors.New("image not found")
)
