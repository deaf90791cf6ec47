package backend

// Null is a Backend that discards everything. It's the default for
// development hosts with no attached peripheral: every operation
// succeeds and ReadStatus always reports all channels idle, so sync
// reclaim frees memory immediately.
type Null struct{}

func NewNull() *Null { return &Null{} }

func (n *Null) Reset() error { return nil }

func (n *Null) WriteMem(addr int, data []byte) (int, error) {
	return len(data), nil
}

func (n *Null) ProgramChannel(channel int, addr, length int) error {
	return nil
}

func (n *Null) ReadStatus() (uint32, error) {
	return 0, nil
}

func (n *Null) OutputTest() error { return nil }
