// Package beacon periodically broadcasts a node's identity over UDP so
// discovery clients can locate it without prior configuration.
package beacon

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"midasnode/internal/telemetry"
)

// DefaultInterval is the announcement cadence when none is configured.
const DefaultInterval = 2 * time.Second

// Status names the two values a beacon's status field takes.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// payload is the wire form of one beacon datagram (spec.md §6).
type payload struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	ID       string  `json:"id"`
	Status   Status  `json:"status"`
	IP       string  `json:"ip"`
	Port     int     `json:"port"`
	Interval float64 `json:"interval"`
}

// Beacon owns one UDP broadcast socket and the identity fields it
// advertises.
type Beacon struct {
	name     string
	nodeType string
	id       string
	ip       string
	port     int
	interval time.Duration
	status   atomic.Value // Status

	conn   *net.UDPConn
	dest   *net.UDPAddr
	logger *zap.Logger
	reg    *telemetry.Registry
}

// New opens a UDP socket with SO_BROADCAST set and targets broadcastAddr
// (e.g. "255.255.255.255:9999") for a node identified by name/nodeType/id
// at ip:port.
func New(broadcastAddr, name, nodeType, id, ip string, port int, interval time.Duration, logger *zap.Logger, reg *telemetry.Registry) (*Beacon, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	dest, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, err
	}

	b := &Beacon{
		name:     name,
		nodeType: nodeType,
		id:       id,
		ip:       ip,
		port:     port,
		interval: interval,
		conn:     conn,
		dest:     dest,
		logger:   logger,
		reg:      reg,
	}
	b.status.Store(StatusOffline)
	return b, nil
}

// enableBroadcast sets SO_BROADCAST on conn's underlying file descriptor so
// datagrams addressed to a subnet broadcast address are permitted to leave
// the host.
func enableBroadcast(conn *net.UDPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// SetStatus changes the advertised status; the next tick broadcasts it.
func (b *Beacon) SetStatus(s Status) {
	b.status.Store(s)
}

// Run broadcasts the beacon payload every interval until ctx is cancelled.
func (b *Beacon) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.broadcast()
		}
	}
}

func (b *Beacon) broadcast() {
	p := payload{
		Name:     b.name,
		Type:     b.nodeType,
		ID:       b.id,
		Status:   b.status.Load().(Status),
		IP:       b.ip,
		Port:     b.port,
		Interval: b.interval.Seconds(),
	}

	data, err := json.Marshal(p)
	if err != nil {
		b.logger.Error("beacon marshal failed", zap.Error(err))
		return
	}
	if _, err := b.conn.WriteToUDP(data, b.dest); err != nil {
		b.logger.Warn("beacon write failed", zap.Error(err))
		return
	}
	if b.reg != nil {
		b.reg.BeaconBroadcasts.Inc()
	}
}

// Close releases the broadcast socket.
func (b *Beacon) Close() {
	b.conn.Close()
}
