package oven

import "sync"

// heaterGate serialises heater writes. Only the regulator of the run the
// gate is open for may drive the output; shut closes the gate and forces
// the heater off, so a cancelled regulator can never switch it back on.
type heaterGate struct {
	mu    sync.Mutex
	out   Heater
	runID string
	on    bool
}

func (g *heaterGate) open(runID string) {
	g.mu.Lock()
	g.runID = runID
	g.mu.Unlock()
}

// set drives the heater for runID. It reports whether the level changed
// and whether the write was allowed.
func (g *heaterGate) set(runID string, on bool) (changed, allowed bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runID == "" || g.runID != runID {
		return false, false, nil
	}
	if err := g.out.SetHeater(on); err != nil {
		return false, true, err
	}
	changed = g.on != on
	g.on = on
	return changed, true, nil
}

func (g *heaterGate) shut() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runID = ""
	g.on = false
	return g.out.SetHeater(false)
}

func (g *heaterGate) level() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.on
}
