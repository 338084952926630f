// Package docker stores converted images through a Docker engine.
//
// The engine does the work: the archive is streamed to its import endpoint,
// the descriptor's Dockerfile and overlay files are streamed to its build
// endpoint as a tar context, and the intermediate image is removed with the
// engine's forced removal. Progress reported by the engine is copied to the
// configured output.
package docker
