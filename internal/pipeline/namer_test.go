package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTimestampNamer(t *testing.T) {
	n := TimestampNamer{Now: func() time.Time { return time.Unix(1700000000, 999) }}
	assert.Equal(t, "import_1700000000", n.Name("import"))

	// Second resolution: names within the same second collide.
	assert.Equal(t, n.Name("import"), n.Name("import"))
}

func TestUUIDNamer(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	n := UUIDNamer{New: func() uuid.UUID { return id }}
	assert.Equal(t, "import_0f8fad5bd9cb469fa16570867728950e", n.Name("import"))

	assert.NotEqual(t, UUIDNamer{}.Name("import"), UUIDNamer{}.Name("import"))
}

func TestFixedNamer(t *testing.T) {
	assert.Equal(t, "import_x", FixedNamer("x").Name("import"))
}
