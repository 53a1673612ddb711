package midi

// Transport abstracts the platform MIDI layer: a capability probe, an
// access request, input-port enumeration, per-port listeners, and a
// hot-plug notification channel.
type Transport interface {
	// Available reports whether the platform MIDI layer exists at all.
	// A false result is permanent for the process.
	Available() bool

	// Open requests access to the hardware transport. It may prompt or
	// fail; callers must treat failure as retryable.
	Open() error

	// Inputs enumerates the currently present input ports.
	Inputs() ([]PortInfo, error)

	// Listen attaches fn to the named input port and returns a stop
	// function detaching it.
	Listen(portID string, fn func(Message)) (stop func(), err error)

	// OnStateChange registers the hot-plug callback. At most one is
	// active; the transport replaces any prior registration.
	OnStateChange(fn func())

	// Close releases transport resources.
	Close() error
}

// PortInfo describes one hardware input port.
type PortInfo struct {
	ID           string
	Name         string
	Manufacturer string
	State        string
}
