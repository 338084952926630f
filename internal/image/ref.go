package image

import (
	"fmt"

	"github.com/distribution/reference"
)

// Tag applied by [ParseRef] when the string carries none.
const DefaultTag = "latest"

// A tagged image reference.
type Ref struct {
	Name string // Repository name in familiar form (e.g., "ceos").
	Tag  string // Image tag (e.g., "4.32.0F").
}

// Creates a reference from a repository name and a tag.
//
// The name must be a bare repository (no tag or digest) and the tag must be
// non-empty and match the docker tag grammar.
func NewRef(name, tag string) (Ref, error) {
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q: %w", ErrInvalidRef, name, err)
	}
	if !reference.IsNameOnly(named) {
		return Ref{}, fmt.Errorf("%w: %q must not carry a tag or digest", ErrInvalidRef, name)
	}
	if tag == "" {
		return Ref{}, fmt.Errorf("%w: %q: empty tag", ErrInvalidRef, name)
	}

	tagged, err := reference.WithTag(named, tag)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: tag %q: %w", ErrInvalidRef, tag, err)
	}

	return Ref{Name: reference.FamiliarName(tagged), Tag: tagged.Tag()}, nil
}

// Parses a "name[:tag]" string. Digest references are rejected.
func ParseRef(s string) (Ref, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q: %w", ErrInvalidRef, s, err)
	}
	if _, ok := named.(reference.Digested); ok {
		return Ref{}, fmt.Errorf("%w: %q: digest references are not supported", ErrInvalidRef, s)
	}

	tag := DefaultTag
	if tagged, ok := named.(reference.Tagged); ok {
		tag = tagged.Tag()
	}

	return Ref{Name: reference.FamiliarName(named), Tag: tag}, nil
}

// Returns the familiar "name:tag" form.
func (r Ref) String() string {
	return r.Name + ":" + r.Tag
}

// Returns the fully qualified form (e.g., "docker.io/library/ceos:4.32.0F").
func (r Ref) Normalized() string {
	named, err := reference.ParseNormalizedNamed(r.String())
	if err != nil {
		return r.String()
	}
	return named.String()
}

// Whether the ref has been populated.
func (r Ref) IsZero() bool {
	return r.Name == "" && r.Tag == ""
}
