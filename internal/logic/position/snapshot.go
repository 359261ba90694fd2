package position

// Snapshot is a copy of the controller state taken at the end of a cycle.
type Snapshot struct {
	State     string  `json:"state"`
	LastSide  string  `json:"last_side"`
	Command   []int   `json:"command"`
	Switches  Reading `json:"switches"`
	Direction string  `json:"direction"`
	Enable    bool    `json:"enable"`
	Cycles    uint64  `json:"cycles"`
}

// Snapshot returns the state as of the last completed cycle. It is safe to
// call from other goroutines.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.snap
	s.Command = append([]int(nil), c.snap.Command...)
	return s
}

func (c *Controller) publish() {
	cmd := make([]int, len(c.cmd))
	for i, b := range c.cmd {
		cmd[i] = int(b)
	}
	s := Snapshot{
		State:     c.state.String(),
		LastSide:  c.lastSide.String(),
		Command:   cmd,
		Switches:  c.reading,
		Direction: c.output.Direction.String(),
		Enable:    c.output.Enable,
		Cycles:    c.cycles,
	}
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}
