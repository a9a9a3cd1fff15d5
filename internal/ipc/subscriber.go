package ipc

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SubscriberStats is a point-in-time view of the subscriber's counters.
type SubscriberStats struct {
	Received   int64 `json:"received"`
	Reconnects int64 `json:"reconnects"`
	Errors     int64 `json:"errors"`
}

// Subscriber receives world snapshots from the server and reconnects until
// stopped.
type Subscriber struct {
	socketPath string
	logger     *zap.Logger
	conn       net.Conn
	connMu     sync.Mutex

	// Latest snapshot (lock-free access)
	latest atomic.Pointer[SnapshotMessage]

	world   WorldMessage
	worldMu sync.RWMutex
	worldCh chan WorldMessage

	// Stats
	received   atomic.Int64
	reconnects atomic.Int64
	errors     atomic.Int64

	// Control
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Callbacks, set before Start
	onSnapshot   func(*SnapshotMessage)
	onWorld      func(*WorldMessage)
	onConnect    func()
	onDisconnect func()
}

// NewSubscriber creates a new IPC subscriber
func NewSubscriber(socketPath string, logger *zap.Logger) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Subscriber{
		socketPath: socketPath,
		logger:     logger.Named("ipc"),
		worldCh:    make(chan WorldMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// OnSnapshot sets a callback for when a snapshot is received
func (s *Subscriber) OnSnapshot(fn func(*SnapshotMessage)) {
	s.onSnapshot = fn
}

// OnWorld sets a callback for when the arena description is received
func (s *Subscriber) OnWorld(fn func(*WorldMessage)) {
	s.onWorld = fn
}

// OnConnect sets a callback for when connection is established
func (s *Subscriber) OnConnect(fn func()) {
	s.onConnect = fn
}

// OnDisconnect sets a callback for when connection is lost
func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

// Start starts the subscriber, connecting to the server
func (s *Subscriber) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil // Already running
	}

	s.wg.Add(1)
	go s.connectionLoop()

	s.logger.Info("📡 IPC subscriber started", zap.String("addr", PlatformAddress(s.socketPath)))
	return nil
}

// Stop disconnects and waits for the connection loop to exit
func (s *Subscriber) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return // Not running
	}

	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	s.logger.Info("📡 IPC subscriber stopped")
}

// Latest returns the most recent snapshot, or nil before the first one
func (s *Subscriber) Latest() *SnapshotMessage {
	return s.latest.Load()
}

// World returns the last arena description received
func (s *Subscriber) World() WorldMessage {
	s.worldMu.RLock()
	defer s.worldMu.RUnlock()
	return s.world
}

// WaitForWorld blocks until an arena description arrives or timeout
func (s *Subscriber) WaitForWorld(timeout time.Duration) *WorldMessage {
	select {
	case w := <-s.worldCh:
		return &w
	case <-time.After(timeout):
		return nil
	case <-s.stopCh:
		return nil
	}
}

// Stats returns subscriber statistics
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		Received:   s.received.Load(),
		Reconnects: s.reconnects.Load(),
		Errors:     s.errors.Load(),
	}
}

// IsConnected returns whether the subscriber is connected
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := ConnectPlatform(s.socketPath)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-time.After(ReconnectDelay):
				continue
			}
		}

		s.connMu.Lock()
		if !s.running.Load() {
			s.connMu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.connMu.Unlock()

		s.logger.Info("✅ Connected to arena", zap.String("addr", PlatformAddress(s.socketPath)))
		if s.onConnect != nil {
			s.onConnect()
		}

		s.readLoop(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()

		if s.onDisconnect != nil {
			s.onDisconnect()
		}

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
			s.reconnects.Add(1)
		}
	}
}

// readLoop blocks on the connection; Stop unblocks it by closing conn.
func (s *Subscriber) readLoop(conn net.Conn) {
	for s.running.Load() {
		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || !s.running.Load() {
				s.logger.Info("🔌 Arena closed connection")
				return
			}
			s.logger.Warn("⚠️ IPC read error", zap.Error(err))
			s.errors.Add(1)
			return
		}

		switch msgType {
		case MsgTypeSnapshot:
			s.handleSnapshot(data)
		case MsgTypeWorld:
			s.handleWorld(data)
		}
	}
}

func (s *Subscriber) handleSnapshot(data []byte) {
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		s.logger.Warn("⚠️ Failed to decode snapshot", zap.Error(err))
		s.errors.Add(1)
		return
	}

	s.latest.Store(snapshot)
	s.received.Add(1)

	if s.onSnapshot != nil {
		s.onSnapshot(snapshot)
	}
}

func (s *Subscriber) handleWorld(data []byte) {
	world, err := DecodeWorld(data)
	if err != nil {
		s.logger.Warn("⚠️ Failed to decode world", zap.Error(err))
		s.errors.Add(1)
		return
	}

	s.worldMu.Lock()
	s.world = *world
	s.worldMu.Unlock()

	s.logger.Info("🗺️ Received arena",
		zap.String("match_id", world.MatchID),
		zap.Int("slots", world.Slots),
		zap.Int("tick_rate", world.TickRate))

	// Keep only the newest description
	select {
	case <-s.worldCh:
	default:
	}
	select {
	case s.worldCh <- *world:
	default:
	}

	if s.onWorld != nil {
		s.onWorld(world)
	}
}
