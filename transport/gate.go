package transport

import (
	"sync"

	"github.com/ValentinKolb/aRPC/common"
)

// --------------------------------------------------------------------------
// Dispatch Gate
// --------------------------------------------------------------------------

// dispatchGate is a one-shot barrier guarding all outstanding work of a
// transport. New work enters through Enter and announces completion with
// Leave; CloseAndWait flips the gate shut and blocks until every entered
// operation has left. After the gate is closed Enter fails with
// common.ErrShuttingDown.
type dispatchGate struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Enter registers one in-flight operation. It fails once the gate is closed.
func (g *dispatchGate) Enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return common.ErrShuttingDown
	}
	g.wg.Add(1)
	return nil
}

// Leave marks one previously entered operation as finished
func (g *dispatchGate) Leave() {
	g.wg.Done()
}

// IsClosed reports whether the gate has been shut
func (g *dispatchGate) IsClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close shuts the gate without waiting; new Enter calls fail from here on
func (g *dispatchGate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Wait blocks until every entered operation has left
func (g *dispatchGate) Wait() {
	g.wg.Wait()
}

// CloseAndWait shuts the gate and drains all in-flight operations. Calling
// it a second time just waits again.
func (g *dispatchGate) CloseAndWait() {
	g.Close()
	g.Wait()
}
