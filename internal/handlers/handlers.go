package handlers

import (
	"time"

	"image-browser/internal/engine"
	"image-browser/internal/media"
)

// Handlers serves the HTTP API on top of an Engine. Request paths are
// relative to the scanner root.
type Handlers struct {
	engine  *engine.Engine
	scanner *media.Scanner
	started time.Time
}

func New(eng *engine.Engine, scanner *media.Scanner) *Handlers {
	return &Handlers{
		engine:  eng,
		scanner: scanner,
		started: time.Now(),
	}
}
