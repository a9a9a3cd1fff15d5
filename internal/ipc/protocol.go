// Package ipc feeds world snapshots to out-of-process renderers.
// Uses Unix domain sockets (TCP loopback on Windows) with a small framed
// protocol so a renderer never shares memory with the tick loop.
package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"tank-arena/internal/game"
)

const (
	// DefaultSocketPath is the Unix socket path for IPC
	DefaultSocketPath = "/tmp/tank-arena.sock"

	// DefaultTCPPort is used instead of a socket on Windows
	DefaultTCPPort = "127.0.0.1:7070"

	// Message types
	MsgTypeSnapshot byte = 0x01
	MsgTypeWorld    byte = 0x04

	// Protocol version for compatibility checking
	ProtocolVersion uint16 = 2

	// Connection settings
	MaxMessageSize = 1024 * 1024 // 1MB max message
	WriteTimeout   = 50 * time.Millisecond
	ReconnectDelay = 500 * time.Millisecond
)

// SnapshotMessage is the wire form of one world snapshot. Projectiles and
// rain carry only live units, so they have no fired flag.
type SnapshotMessage struct {
	Sequence   uint64
	Timestamp  int64 // Unix nano
	TickNumber uint64
	MatchID    string

	Obstacles   []ObstacleData
	Tanks       []TankData
	Projectiles []ProjectileData
	Rain        []ProjectileData

	ActiveObstacles int
	AliveTanks      int
	Running         bool
}

// ObstacleData is the IPC representation of an obstacle
type ObstacleData struct {
	X, Y, Z, R float64
	Active     bool
	IsHit      bool
}

// TankData is the IPC representation of a tank
type TankData struct {
	Slot       int
	X, Y, Z, R float64
	Azimuth    float64
	Health     float64
	Ammo       int
	MaxAmmo    int
	Alive      bool
	IsHit      bool
}

// ProjectileData is the IPC representation of a live round or rain drop
type ProjectileData struct {
	X, Y, Z, R float64
	OwnerSlot  int
}

// WorldMessage describes the arena. It is sent once to every new client and
// again whenever the match changes.
type WorldMessage struct {
	MatchID  string
	TickRate int
	Slots    int
	Bounds   game.Bounds
}

// Header is the message header for framing
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

const HeaderSize = 8 // 2 + 1 + 1 + 4

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// WriteMessage writes a framed, gob-encoded message to w. Header and body go
// out in a single Write so concurrent deadlines never split a frame.
func WriteMessage(w io.Writer, msgType byte, data interface{}) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer bufferPool.Put(buf)
	buf.Reset()
	buf.Write(make([]byte, HeaderSize))

	if data != nil {
		if err := gob.NewEncoder(buf).Encode(data); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
	}

	frame := buf.Bytes()
	length := len(frame) - HeaderSize
	if length > MaxMessageSize {
		return fmt.Errorf("message too large: %d > %d", length, MaxMessageSize)
	}

	binary.LittleEndian.PutUint16(frame[0:2], ProtocolVersion)
	frame[2] = msgType
	frame[3] = 0
	binary.LittleEndian.PutUint32(frame[4:8], uint32(length))

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads a framed message from the connection
func ReadMessage(r io.Reader) (byte, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	header := Header{
		Version: binary.LittleEndian.Uint16(headerBuf[0:2]),
		Type:    headerBuf[2],
		Length:  binary.LittleEndian.Uint32(headerBuf[4:8]),
	}

	if header.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("version mismatch: got %d, want %d", header.Version, ProtocolVersion)
	}

	if header.Length > MaxMessageSize {
		return 0, nil, fmt.Errorf("message too large: %d > %d", header.Length, MaxMessageSize)
	}

	var body []byte
	if header.Length > 0 {
		body = make([]byte, header.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}

	return header.Type, body, nil
}

// DecodeSnapshot decodes a snapshot from gob bytes
func DecodeSnapshot(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode snapshot: %w", err)
	}
	return &msg, nil
}

// DecodeWorld decodes a world description from gob bytes
func DecodeWorld(data []byte) (*WorldMessage, error) {
	var msg WorldMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode world: %w", err)
	}
	return &msg, nil
}

// CleanupSocket removes the socket file if it exists
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}
