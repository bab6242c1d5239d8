package supervisor

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNamesExhausted = errors.New("name generation exhausted")

// Generator produces candidate names for anonymous submissions. Implementations
// must be safe for concurrent use. Injectable so tests can force collisions.
type Generator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// reserveName generates a candidate name and atomically inserts the final
// handle under it. On collision it sleeps briefly and retries, giving up with
// ErrNamesExhausted after maxAttempts consecutive collisions. A name is only
// returned if it was reserved in the registry at the moment of generation, so
// two racing callers can never be handed the same name.
func (s *Supervisor) reserveName(h *Handle) (string, error) {
	for attempt := 1; attempt <= s.maxNameAttempts; attempt++ {
		name := s.gen.Generate()
		if name != "" {
			h.name = name
			if s.reg.TryInsert(name, h) {
				return name, nil
			}
		}
		if s.metrics != nil {
			s.metrics.NameCollisions.Inc()
		}
		if attempt < s.maxNameAttempts && s.nameRetrySleep > 0 {
			time.Sleep(s.nameRetrySleep)
		}
	}
	h.name = ""
	return "", ErrNamesExhausted
}
