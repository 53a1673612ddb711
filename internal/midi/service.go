package midi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hong8300/onpu-yomail/internal/model"
	"github.com/hong8300/onpu-yomail/internal/store"
)

// Error definitions for the device service lifecycle.
var (
	ErrNotSupported = errors.New("midi is not supported on this platform")
	ErrNotConnected = errors.New("midi is not connected")
)

// snapshotKey is the session-scoped record mirroring connection state so
// that navigating between screens does not force a reconnect.
const snapshotKey = "onpu-midi-state"

type snapshot struct {
	IsConnected bool               `json:"isConnected"`
	Devices     []model.MidiDevice `json:"devices"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Subscription is a handle to a registered note-on consumer. Cancel is
// idempotent.
type Subscription struct {
	id      int
	service *Service
}

// Cancel removes the subscription.
func (s Subscription) Cancel() {
	if s.service == nil {
		return
	}
	s.service.unsubscribe(s.id)
}

// Service owns the device inventory and connection state. It decodes raw
// messages into note events and fans them out to subscribers. All state
// mutation is serialized behind one mutex; callbacks run outside it.
type Service struct {
	mu        sync.Mutex
	logger    *zap.Logger
	transport Transport
	kv        store.KV

	connected bool
	devices   []model.MidiDevice
	stops     map[string]func()
	subs      map[int]func(NoteEvent)
	nextSub   int
}

// NewService builds a Service over the given transport and snapshot
// store. The transport may be nil (platform layer absent).
func NewService(transport Transport, kv store.KV, opts ...Option) *Service {
	s := &Service{
		logger:    zap.NewNop(),
		transport: transport,
		kv:        kv,
		stops:     map[string]func(){},
		subs:      map[int]func(NoteEvent){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Supported reports the one-time capability probe result.
func (s *Service) Supported() bool {
	return s.transport != nil && s.transport.Available()
}

// Connected reports whether the service holds transport access.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Devices returns a copy of the current input inventory.
func (s *Service) Devices() []model.MidiDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MidiDevice, len(s.devices))
	copy(out, s.devices)
	return out
}

// Connect requests transport access, enumerates input ports, and
// attaches a listener to each. Failure leaves state unchanged.
func (s *Service) Connect(ctx context.Context) error {
	if !s.Supported() {
		return ErrNotSupported
	}
	if err := s.transport.Open(); err != nil {
		s.logger.Error("midi access request failed", zap.Error(err))
		return fmt.Errorf("connect midi: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.attachAllLocked(); err != nil {
		return err
	}
	s.connected = true
	s.transport.OnStateChange(func() { s.handleStateChange(ctx) })
	s.logger.Info("midi connected", zap.Int("devices", len(s.devices)))
	s.saveSnapshotLocked(ctx)
	return nil
}

// Disconnect removes all listeners, clears the device inventory, and
// clears the persisted connection flag.
func (s *Service) Disconnect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachAllLocked()
	s.devices = nil
	s.connected = false
	if err := s.kv.Remove(ctx, snapshotKey); err != nil {
		s.logger.Warn("failed to clear midi snapshot", zap.Error(err))
	}
	s.logger.Info("midi disconnected")
}

// Dispose disconnects and releases the transport. The service must not
// be used afterwards.
func (s *Service) Dispose(ctx context.Context) error {
	s.Disconnect(ctx)
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}

// Subscribe registers a note-on consumer and returns its handle.
// Multiple consumers may hold subscriptions concurrently.
func (s *Service) Subscribe(fn func(NoteEvent)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return Subscription{id: id, service: s}
}

func (s *Service) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// Restore re-acquires access when the session snapshot says a previous
// screen was connected. Failure falls back to a clean disconnected
// state; an absent snapshot is a no-op.
func (s *Service) Restore(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, snapshotKey)
	if err != nil {
		return fmt.Errorf("read midi snapshot: %w", err)
	}
	if !ok {
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil || !snap.IsConnected {
		return nil
	}
	if err := s.Connect(ctx); err != nil {
		s.logger.Warn("midi restore failed", zap.Error(err))
		s.Disconnect(ctx)
		return nil
	}
	s.logger.Info("midi connection restored")
	return nil
}

// handleStateChange re-enumerates on hot-plug and re-attaches listeners,
// removing any existing listener first to prevent duplicates.
func (s *Service) handleStateChange(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}
	s.logger.Debug("midi inventory changed, re-enumerating")
	if err := s.attachAllLocked(); err != nil {
		s.logger.Warn("midi re-enumeration failed", zap.Error(err))
		return
	}
	s.saveSnapshotLocked(ctx)
}

func (s *Service) attachAllLocked() error {
	ports, err := s.transport.Inputs()
	if err != nil {
		return fmt.Errorf("enumerate midi inputs: %w", err)
	}

	// Remove-then-add: detach listeners for ports that vanished and
	// re-attach present ones exactly once.
	s.detachAllLocked()

	devices := make([]model.MidiDevice, 0, len(ports))
	for _, port := range ports {
		devices = append(devices, model.MidiDevice{
			ID:           port.ID,
			Name:         port.Name,
			Manufacturer: port.Manufacturer,
			State:        port.State,
		})
		stop, err := s.transport.Listen(port.ID, s.handleMessage)
		if err != nil {
			s.logger.Warn("failed to attach midi listener",
				zap.String("port", port.Name), zap.Error(err))
			continue
		}
		s.stops[port.ID] = stop
	}
	s.devices = devices
	return nil
}

func (s *Service) detachAllLocked() {
	for id, stop := range s.stops {
		stop()
		delete(s.stops, id)
	}
}

func (s *Service) handleMessage(msg Message) {
	event, ok := DecodeNoteOn(msg)
	if !ok {
		return
	}
	s.logger.Debug("note on",
		zap.String("name", event.Name),
		zap.Int("octave", event.Octave),
		zap.Uint8("number", event.Number))

	s.mu.Lock()
	fns := make([]func(NoteEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(event)
	}
}

func (s *Service) saveSnapshotLocked(ctx context.Context) {
	raw, err := json.Marshal(snapshot{IsConnected: s.connected, Devices: s.devices})
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, snapshotKey, raw); err != nil {
		s.logger.Warn("failed to save midi snapshot", zap.Error(err))
	}
}
