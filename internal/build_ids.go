package internal

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// BuildIDSource issues lexically sortable build ids. Ids issued within the
// same millisecond stay ordered.
type BuildIDSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewBuildIDSource() *BuildIDSource {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &BuildIDSource{entropy: ulid.Monotonic(src, 0)}
}

// Next returns a new id stamped with at.
func (s *BuildIDSource) Next(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}
