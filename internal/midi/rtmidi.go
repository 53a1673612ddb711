package midi

import (
	"fmt"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const rescanInterval = time.Second

// RtTransport implements Transport over the rtmidi driver. rtmidi has no
// hot-plug notifications, so a background rescan detects inventory
// changes and fires the state-change callback.
type RtTransport struct {
	mu       sync.Mutex
	drv      *rtmididrv.Driver
	onChange func()
	lastSeen  []string
	stopScan  chan struct{}
	scanOnce  sync.Once
	closeOnce sync.Once

	// listNames enumerates input port names. Driver-backed normally,
	// swapped out by tests.
	listNames func() ([]string, error)
}

// NewRtTransport probes the rtmidi driver. A nil transport with a nil
// error means the platform layer is absent (capability probe failure is
// not an error here; Service maps it to unsupported).
func NewRtTransport() (*RtTransport, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, nil
	}
	t := &RtTransport{drv: drv, stopScan: make(chan struct{})}
	t.listNames = t.driverNames
	return t, nil
}

func (t *RtTransport) driverNames() ([]string, error) {
	ins, err := t.drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// Available implements Transport.
func (t *RtTransport) Available() bool {
	return t != nil && t.listNames != nil
}

// Open implements Transport. rtmidi grants access at driver creation, so
// this verifies the driver still answers and primes the rescan baseline
// with the current inventory; otherwise the first tick would report a
// phantom change.
func (t *RtTransport) Open() error {
	if !t.Available() {
		return fmt.Errorf("rtmidi driver not available")
	}
	names, err := t.listNames()
	if err != nil {
		return fmt.Errorf("rtmidi: %w", err)
	}
	t.mu.Lock()
	t.lastSeen = names
	t.mu.Unlock()
	t.scanOnce.Do(func() { go t.rescanLoop() })
	return nil
}

// Inputs implements Transport.
func (t *RtTransport) Inputs() ([]PortInfo, error) {
	ins, err := t.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	ports := make([]PortInfo, 0, len(ins))
	for _, in := range ins {
		ports = append(ports, PortInfo{
			ID:           in.String(),
			Name:         in.String(),
			Manufacturer: "Unknown",
			State:        "connected",
		})
	}
	return ports, nil
}

// Listen implements Transport.
func (t *RtTransport) Listen(portID string, fn func(Message)) (func(), error) {
	ins, err := t.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == portID {
			found = in
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("input %q not found", portID)
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", portID, err)
	}

	stop, err := gomidi.ListenTo(found, func(msg gomidi.Message, _ int32) {
		raw := msg.Bytes()
		if len(raw) < 3 {
			return
		}
		fn(Message{Status: raw[0], Note: raw[1], Velocity: raw[2]})
	}, gomidi.HandleError(func(error) {
		// Listener errors surface as device loss on the next rescan.
	}))
	if err != nil {
		_ = found.Close()
		return nil, fmt.Errorf("listen %q: %w", portID, err)
	}
	return func() {
		stop()
		_ = found.Close()
	}, nil
}

// OnStateChange implements Transport.
func (t *RtTransport) OnStateChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Close implements Transport. Safe to call more than once.
func (t *RtTransport) Close() error {
	if !t.Available() {
		return nil
	}
	var err error
	t.closeOnce.Do(func() {
		close(t.stopScan)
		if t.drv != nil {
			err = t.drv.Close()
		}
	})
	return err
}

func (t *RtTransport) rescanLoop() {
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopScan:
			return
		case <-ticker.C:
			t.rescan()
		}
	}
}

func (t *RtTransport) rescan() {
	t.mu.Lock()
	list := t.listNames
	t.mu.Unlock()
	names, err := list()
	if err != nil {
		return
	}
	t.mu.Lock()
	changed := !equalStrings(names, t.lastSeen)
	t.lastSeen = names
	fn := t.onChange
	t.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
