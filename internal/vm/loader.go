package vm

// loader.go loads assembled object code into the bus, bypassing the MMU, per §4.9 and §6.5.

import (
	"errors"
	"fmt"
	"sort"

	"github.com/project-octo/octovm/internal/log"
)

// ObjectCode is the assembler's output: one or more segments of bytes, each keyed by the address
// its .org directive set. Segments need not be contiguous, overlapping, or given in address
// order; the assembler starts a new one at each .org directive, and everything up to the next
// .org is appended to it.
type ObjectCode map[Word][]Byte

// Loader copies assembled object code into a bus's RAM. Loading runs before the CPU does and
// bypasses the region table entirely: there is no meaningful (mode, intent, task) under which to
// check a load, since nothing is executing yet.
type Loader struct {
	bus *Bus
	log *log.Logger
}

// NewLoader creates a loader that writes into bus.
func NewLoader(bus *Bus) *Loader {
	return &Loader{bus: bus, log: log.DefaultLogger()}
}

// WithLogger configures the loader's logger.
func (l *Loader) WithLogger(logger *log.Logger) {
	l.log = logger
}

// Load writes every segment of obj into the bus, in ascending order of origin, and reports the
// total number of bytes written.
func (l *Loader) Load(obj ObjectCode) (int, error) {
	if len(obj) == 0 {
		return 0, fmt.Errorf("%w: object code is empty", ErrObjectLoader)
	}

	origins := make([]Word, 0, len(obj))

	for origin := range obj {
		origins = append(origins, origin)
	}

	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })

	count := 0

	for _, origin := range origins {
		segment := obj[origin]

		l.log.Debug("loading segment", "origin", origin, "len", len(segment))

		for i, b := range segment {
			l.bus.ForceSet(origin+Word(i), b)
		}

		count += len(segment)
	}

	return count, nil
}

// ErrObjectLoader is wrapped by every error Load returns.
var ErrObjectLoader = errors.New("loader error")
