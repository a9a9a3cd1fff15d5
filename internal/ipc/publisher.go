package ipc

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tank-arena/internal/game"

	"go.uber.org/zap"
)

// PublisherStats is a point-in-time view of the publisher's counters.
type PublisherStats struct {
	Clients       int   `json:"clients"`
	SnapshotsSent int64 `json:"snapshotsSent"`
	Dropped       int64 `json:"dropped"`
}

// Publisher publishes world snapshots to connected renderers
type Publisher struct {
	socketPath string
	listener   net.Listener
	logger     *zap.Logger

	// Connected clients
	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	// Snapshot channel (ring buffer behavior - drop old if full)
	snapshotCh chan *game.GameSnapshot

	// Arena description sent to new clients
	world   WorldMessage
	worldMu sync.RWMutex

	// Stats
	clientCount   atomic.Int32
	snapshotsSent atomic.Int64
	droppedFrames atomic.Int64

	// Control
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a new IPC publisher
func NewPublisher(socketPath string, logger *zap.Logger) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Publisher{
		socketPath: socketPath,
		logger:     logger.Named("ipc"),
		clients:    make(map[net.Conn]struct{}),
		snapshotCh: make(chan *game.GameSnapshot, 8), // Buffer 8 frames
		stopCh:     make(chan struct{}),
	}
}

// SetWorld records the arena description and pushes it to every client
// already connected.
func (p *Publisher) SetWorld(world WorldMessage) {
	p.worldMu.Lock()
	p.world = world
	p.worldMu.Unlock()

	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	for conn := range p.clients {
		p.sendWorld(conn, world)
	}
}

// Start listens on the socket and starts the accept and broadcast loops.
func (p *Publisher) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil // Already running
	}

	listener, err := CreatePlatformListener(p.socketPath)
	if err != nil {
		p.running.Store(false)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	p.logger.Info("📡 IPC publisher started", zap.String("addr", PlatformAddress(p.socketPath)))
	return nil
}

// Run starts the publisher and stops it when ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	p.Stop()
	return nil
}

// Stop closes the listener and every client, then removes the socket file.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return // Not running
	}

	close(p.stopCh)

	if p.listener != nil {
		p.listener.Close()
	}

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[net.Conn]struct{})
	p.clientCount.Store(0)
	p.clientsMu.Unlock()

	p.wg.Wait()

	CleanupSocket(p.socketPath)
	p.logger.Info("📡 IPC publisher stopped")
}

// PublishSnapshot queues a snapshot for broadcast.
// This is non-blocking - drops the oldest snapshot if buffer is full
func (p *Publisher) PublishSnapshot(snapshot *game.GameSnapshot) {
	if snapshot == nil || !p.running.Load() {
		return
	}

	select {
	case p.snapshotCh <- snapshot:
	default:
		select {
		case <-p.snapshotCh:
			p.droppedFrames.Add(1)
		default:
		}
		select {
		case p.snapshotCh <- snapshot:
		default:
		}
	}
}

// Stats returns publisher statistics
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Clients:       int(p.clientCount.Load()),
		SnapshotsSent: p.snapshotsSent.Load(),
		Dropped:       p.droppedFrames.Load(),
	}
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for p.running.Load() {
		conn, err := p.listener.Accept()
		if err != nil {
			if !p.running.Load() {
				return // Expected during shutdown
			}
			p.logger.Warn("⚠️ IPC accept error", zap.Error(err))
			time.Sleep(ReconnectDelay)
			continue
		}

		p.addClient(conn)
	}
}

func (p *Publisher) addClient(conn net.Conn) {
	p.worldMu.RLock()
	world := p.world
	p.worldMu.RUnlock()

	p.clientsMu.Lock()
	if !p.running.Load() {
		p.clientsMu.Unlock()
		conn.Close()
		return
	}
	p.clients[conn] = struct{}{}
	p.sendWorld(conn, world)
	p.clientsMu.Unlock()

	count := p.clientCount.Add(1)
	p.logger.Info("✅ Renderer connected", zap.Int32("total", count))
}

// sendWorld writes the arena description. Callers hold clientsMu so the
// write never interleaves with a broadcast frame.
func (p *Publisher) sendWorld(conn net.Conn, world WorldMessage) {
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeWorld, world); err != nil {
		p.logger.Warn("⚠️ Failed to send world to renderer", zap.Error(err))
	}
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	_, ok := p.clients[conn]
	if ok {
		delete(p.clients, conn)
		conn.Close()
	}
	p.clientsMu.Unlock()

	if ok {
		count := p.clientCount.Add(-1)
		p.logger.Info("🔌 Renderer disconnected", zap.Int32("remaining", count))
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return

		case snapshot := <-p.snapshotCh:
			p.broadcast(snapshot)
		}
	}
}

// broadcast sends a snapshot to all clients and drops any that fail.
// A new match ID (after a world reset) re-sends the arena description first.
func (p *Publisher) broadcast(snapshot *game.GameSnapshot) {
	msg := snapshotToMessage(snapshot)

	p.worldMu.Lock()
	matchChanged := p.world.MatchID != msg.MatchID
	if matchChanged {
		p.world.MatchID = msg.MatchID
	}
	world := p.world
	p.worldMu.Unlock()

	var failed []net.Conn
	p.clientsMu.RLock()
	total := len(p.clients)
	for conn := range p.clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if matchChanged {
			if err := WriteMessage(conn, MsgTypeWorld, world); err != nil {
				failed = append(failed, conn)
				continue
			}
		}
		if err := WriteMessage(conn, MsgTypeSnapshot, msg); err != nil {
			failed = append(failed, conn)
		}
	}
	p.clientsMu.RUnlock()

	for _, conn := range failed {
		p.removeClient(conn)
	}

	if total > 0 && len(failed) < total {
		p.snapshotsSent.Add(1)
	}
}
