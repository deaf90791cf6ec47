// Package backend defines the hardware abstraction the output worker
// drives. Concrete SPI/PWM/kernel-LED-driver implementations live
// outside this repository; this package only carries the interface
// contract plus a couple of reference backends (mock, null) used for
// development and tests.
package backend

import "errors"

// ErrChannelBusy is returned by ProgramChannel when the channel is
// already emitting and the backend cannot accept a new descriptor.
var ErrChannelBusy = errors.New("backend: channel busy")

// NumChannels is the width of the status bitmask: bit i is set iff
// channel i is currently emitting.
const NumChannels = 16

// Backend is the contract the output worker (C3) drives the peripheral
// through. Implementations must be safe for sequential use from a single
// goroutine — the worker never calls into a Backend concurrently.
type Backend interface {
	// Reset deasserts all outputs. It may block briefly.
	Reset() error

	// WriteMem copies data into peripheral memory starting at addr,
	// returning the number of bytes actually written.
	WriteMem(addr int, data []byte) (int, error)

	// ProgramChannel latches a DMA descriptor for channel, pointing at
	// [addr, addr+length), and starts emission.
	ProgramChannel(channel int, addr, length int) error

	// ReadStatus returns a bitmask with bit i set iff channel i is
	// currently emitting.
	ReadStatus() (uint32, error)

	// OutputTest runs an optional self-test (e.g. cycling colors across
	// channels). Backends that have none may no-op.
	OutputTest() error
}

// Registry maps a config-named backend identifier to a constructor. The
// core never does runtime symbol lookup; backends are selected at
// startup from this statically-linked table.
type Registry struct {
	factories map[string]func() (Backend, error)
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() (Backend, error))}
}

// Register adds a named backend constructor. It panics on a duplicate
// name, since that can only be a programming error (two init()s racing
// for the same config key).
func (r *Registry) Register(name string, factory func() (Backend, error)) {
	if _, exists := r.factories[name]; exists {
		panic("backend: duplicate registration for " + name)
	}
	r.factories[name] = factory
}

// Build constructs the backend registered under name.
func (r *Registry) Build(name string) (Backend, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, errors.New("backend: no backend registered as " + name)
	}
	return factory()
}

// DefaultRegistry is populated by this package's init() with the
// reference backends (mock, null). A real SPI/PWM/kernel-LED backend
// registers itself into DefaultRegistry from its own package's init().
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register("null", func() (Backend, error) {
		return NewNull(), nil
	})
	DefaultRegistry.Register("mock", func() (Backend, error) {
		return NewMock(), nil
	})
}
