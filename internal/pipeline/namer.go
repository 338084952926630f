package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generates intermediate repository names.
type Namer interface {
	Name(prefix string) string
}

// Names images "<prefix>_<unix-seconds>".
//
// Uniqueness is best effort: names generated within the same second are
// identical.
type TimestampNamer struct {
	Now func() time.Time // Clock, defaults to time.Now.
}

func (n TimestampNamer) Name(prefix string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return prefix + "_" + strconv.FormatInt(now().Unix(), 10)
}

// Names images "<prefix>_<uuid>", with the UUID in undashed hex.
type UUIDNamer struct {
	New func() uuid.UUID // Source of UUIDs, defaults to uuid.New.
}

func (n UUIDNamer) Name(prefix string) string {
	gen := uuid.New
	if n.New != nil {
		gen = n.New
	}
	return prefix + "_" + strings.ReplaceAll(gen().String(), "-", "")
}

// Always returns the same name. Useful to reproduce collisions.
type FixedNamer string

func (n FixedNamer) Name(prefix string) string {
	return prefix + "_" + string(n)
}
