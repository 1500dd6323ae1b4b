package processor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/un-ts/sh-syntax/ast"
)

type outcome struct {
	env *ast.Envelope
	err error
}

type entry struct {
	delivered bool
	outcome   outcome
}

// correlation pairs each call with its result. A call registers an id,
// the invocation delivers under that id and the caller takes the result,
// which removes the entry.
//
// Today invoke delivers synchronously under Processor.mu, so entries never
// overlap. The table keeps delivery and collection independent of the
// goroutine and lock they run under; a completion path that delivers from
// elsewhere only has to keep the id.
type correlation struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]*entry
	logger  *zap.Logger
}

func newCorrelation(logger *zap.Logger) *correlation {
	return &correlation{
		entries: make(map[uint64]*entry),
		logger:  logger,
	}
}

func (c *correlation) register() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	c.entries[c.next] = &entry{}
	return c.next
}

// deliver stores the outcome for id. Unknown ids and second deliveries
// are dropped.
func (c *correlation) deliver(id uint64, o outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	switch {
	case !ok:
		c.logger.Warn("dropping result for unknown call", zap.Uint64("call", id))
		return false
	case e.delivered:
		c.logger.Warn("dropping duplicate result", zap.Uint64("call", id))
		return false
	}
	e.delivered = true
	e.outcome = o
	return true
}

// take removes the entry for id and returns its outcome. It reports false
// if nothing was delivered.
func (c *correlation) take(id uint64) (outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return outcome{}, false
	}
	delete(c.entries, id)
	return e.outcome, e.delivered
}

func (c *correlation) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
