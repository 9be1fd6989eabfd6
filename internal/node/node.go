// Package node wires a MIDAS node's ring buffers, catalog, receiver,
// broker, responder pool, publisher and beacon into a single runtime
// object, and implements the supervisor's start/stop lifecycle.
package node

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"midasnode/internal/catalog"
	"midasnode/internal/config"
	"midasnode/internal/metricfn"
	"midasnode/internal/receiver"
	"midasnode/internal/ring"
	"midasnode/internal/telemetry"
	"midasnode/pkg/beacon"
	"midasnode/pkg/broker"
	"midasnode/pkg/publisher"
)

// beaconBroadcastAddr is the subnet-wide announce target used when the
// node does not have a dedicated discovery network configured.
const beaconBroadcastAddr = "255.255.255.255:9999"

// Node is the top-level runtime object built from a loaded Config.
type Node struct {
	cfg    config.Config
	logger *zap.Logger
	reg    *telemetry.Registry

	primary   *ring.PrimaryRing
	secondary *ring.SecondaryRing

	catalog *catalog.Catalog

	broker     *broker.Broker
	responders []*broker.Responder
	receiver   *receiver.Receiver
	pub        *publisher.Publisher
	beacon     *beacon.Beacon
	sampler    *telemetry.SystemSampler
	metricsSrv *http.Server

	topics  map[string]string
	workers []func(context.Context)

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a node from cfg. source is nil when cfg.PrimaryNode is false.
func New(cfg config.Config, source receiver.SampleSource, logger *zap.Logger) *Node {
	reg := telemetry.NewRegistry(cfg.NodeName)

	n := &Node{
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		catalog: catalog.New(),
		topics:  map[string]string{},
	}

	if cfg.PrimaryNode {
		n.primary = ring.NewPrimaryRing(cfg.NChannels, cfg.BufferSize(), cfg.SamplingRate)
		n.receiver = receiver.New(source, cfg.LSLStreamName, n.primary, logger, func() {
			reg.RingAppends.Inc()
		})
	}

	if cfg.SecondaryData {
		sizes := make([]int, cfg.NChannelsSecondary)
		for i := range sizes {
			sizes[i] = cfg.BufferSizeSecondary
		}
		n.secondary = ring.NewSecondaryRing(sizes)
	}

	n.registerBuiltinMetrics()

	n.broker = broker.New(logger, reg)
	n.responders = make([]*broker.Responder, cfg.NWorkers)
	for i := 0; i < cfg.NWorkers; i++ {
		id := fmt.Sprintf("responder-%d", i)
		n.responders[i] = broker.NewResponder(id, n.broker, n.catalog, n, n, logger, reg)
	}

	return n
}

func (n *Node) registerBuiltinMetrics() {
	n.catalog.Register("test", "Toy metric returning ping or pong", metricfn.Test)
	n.catalog.Register("mean", "Arithmetic mean of a channel", metricfn.Mean)
	n.catalog.Register("rms", "Root-mean-square of a channel, optionally scaled", metricfn.RMS)
}

// RegisterMetric adds a user-supplied metric function to the node's
// catalog. Must be called before Start.
func (n *Node) RegisterMetric(name, description string, fn catalog.Func) {
	n.catalog.Register(name, description, fn)
}

// RegisterTopic declares a topic this node may publish on, surfaced by the
// get_topic_list command.
func (n *Node) RegisterTopic(name, description string) {
	n.topics[name] = description
}

// RegisterWorker adds a user-defined worker function producing secondary
// channel samples (via PushSample/PushChunk) or otherwise running alongside
// the node's own goroutines. fn must return when ctx is cancelled. Must be
// called before Start; Start launches one goroutine per registered worker
// and Stop cancels and joins them along with the responder pool.
func (n *Node) RegisterWorker(fn func(ctx context.Context)) {
	n.workers = append(n.workers, fn)
}

// Publish enqueues payload for the publisher, when one is configured.
func (n *Node) Publish(ctx context.Context, payload string) error {
	if n.pub == nil {
		return fmt.Errorf("node: publisher not configured")
	}
	return n.pub.Enqueue(ctx, payload)
}

// Start launches every worker and waits out the startup grace period
// before returning, the way spec.md's supervisor does.
func (n *Node) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.running.Store(true)

	b, err := beacon.New(beaconBroadcastAddr, n.cfg.NodeName, n.cfg.NodeType, n.cfg.NodeID,
		n.cfg.IP, n.cfg.PortFrontend, beacon.DefaultInterval, n.logger, n.reg)
	if err != nil {
		return fmt.Errorf("node: beacon: %w", err)
	}
	n.beacon = b

	if n.cfg.RunPublisher {
		subject := "midas." + n.cfg.NodeName
		pub, err := publisher.New(n.cfg.PublisherURL(), subject, n.cfg.NodeName, n.logger, n.reg)
		if err != nil {
			return fmt.Errorf("node: publisher: %w", err)
		}
		n.pub = pub
		n.wg.Add(1)
		go func() { defer n.wg.Done(); n.pub.Run(runCtx) }()
	}

	if n.cfg.PrimaryNode {
		n.wg.Add(1)
		go func() { defer n.wg.Done(); n.receiver.Run(runCtx) }()
	}

	for _, r := range n.responders {
		n.wg.Add(1)
		go func(r *broker.Responder) { defer n.wg.Done(); r.Run(runCtx) }(r)
	}

	for _, fn := range n.workers {
		n.wg.Add(1)
		go func(fn func(context.Context)) { defer n.wg.Done(); fn(runCtx) }(fn)
	}

	if n.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(n.cfg.Metrics.Endpoint, n.reg.Handler())
		n.metricsSrv = &http.Server{Addr: n.cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := n.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				n.logger.Error("metrics server failed", zap.Error(err))
			}
		}()

		n.sampler = telemetry.NewSystemSampler(n.reg, 2*time.Second)
		n.wg.Add(1)
		go func() { defer n.wg.Done(); n.sampler.Run(runCtx) }()
	}

	n.beacon.SetStatus(beacon.StatusOnline)
	n.wg.Add(1)
	go func() { defer n.wg.Done(); n.beacon.Run(runCtx) }()

	n.logger.Info("node starting", zap.String("nodename", n.cfg.NodeName), zap.Duration("grace", config.StartupGrace))
	time.Sleep(config.StartupGrace)
	n.logger.Info("node online", zap.String("nodename", n.cfg.NodeName))

	return nil
}

// Stop idempotently tears the node down in the mirror order of Start.
func (n *Node) Stop() {
	if !n.running.CompareAndSwap(true, false) {
		n.logger.Info("node is not running", zap.String("nodename", n.cfg.NodeName))
		return
	}

	n.logger.Info("node shutting down", zap.String("nodename", n.cfg.NodeName))
	n.beacon.SetStatus(beacon.StatusOffline)
	n.cancel()
	n.wg.Wait()

	if n.metricsSrv != nil {
		_ = n.metricsSrv.Close()
	}
	if n.pub != nil {
		n.pub.Close()
	}
	n.beacon.Close()

	n.logger.Info("node offline", zap.String("nodename", n.cfg.NodeName))
}

// ServeFrontend exposes the broker's WebSocket endpoint.
func (n *Node) ServeFrontend(w http.ResponseWriter, r *http.Request) {
	n.broker.ServeFrontend(w, r)
}

// --- broker.DataSource ---

// ChannelNames returns the primary and secondary channel name lists.
func (n *Node) ChannelNames() (primary []string, secondary []string) {
	return n.cfg.ChannelNames, n.cfg.ChannelNamesSecondary
}

// PrimarySnapshot takes a windowed snapshot of the primary ring, or a
// zero-value snapshot when this node has none.
func (n *Node) PrimarySnapshot(win ring.TimeWindow) ring.PrimarySnapshot {
	n.reg.RingSnapshots.Inc()
	if n.primary == nil {
		return ring.PrimarySnapshot{}
	}
	return n.primary.Snapshot(win)
}

// SecondarySnapshot takes a windowed snapshot of every secondary channel.
func (n *Node) SecondarySnapshot(win ring.TimeWindow) ring.SecondarySnapshot {
	if n.secondary == nil {
		return ring.SecondarySnapshot{}
	}
	return n.secondary.Snapshot(win)
}

// PushSample feeds one secondary-channel sample, for user worker code.
func (n *Node) PushSample(channel int, t, v float64) {
	n.secondary.PushSample(channel, t, v)
}

// PushChunk feeds a burst of secondary-channel samples atomically.
func (n *Node) PushChunk(channel int, ts, vs []float64) {
	n.secondary.PushChunk(channel, ts, vs)
}

// WaitNext blocks for the next primary sample, restoring the original
// node's blocking get_sample read.
func (n *Node) WaitNext(ctx context.Context) ([]float64, error) {
	return n.primary.WaitNext(ctx)
}

// --- broker.NodeInfoProvider ---

// NodeInfo reports the node's identity, channel layout and buffer state.
func (n *Node) NodeInfo() map[string]interface{} {
	info := map[string]interface{}{
		"name":         n.cfg.NodeName,
		"desc":         n.cfg.NodeDesc,
		"primary_node": n.cfg.PrimaryNode,
	}
	if n.cfg.PrimaryNode {
		info["channel_count"] = n.cfg.NChannels
		info["channel_names"] = strings.Join(n.cfg.ChannelNames, ",")
		info["channel_descriptions"] = strings.Join(n.cfg.ChannelDescriptions, ",")
		info["sampling_rate"] = n.cfg.SamplingRate
		info["buffer_size"] = n.cfg.BufferSizeS
		info["buffer_full"] = n.primary.Full()
	}
	return info
}

// PublisherURL returns the publisher endpoint, or "" when disabled.
func (n *Node) PublisherURL() string {
	return n.cfg.PublisherURL()
}

// DataList maps every channel name (primary then secondary) to its
// description.
func (n *Node) DataList() map[string]string {
	out := make(map[string]string, len(n.cfg.ChannelNames)+len(n.cfg.ChannelNamesSecondary))
	for i, name := range n.cfg.ChannelNames {
		out[name] = at(n.cfg.ChannelDescriptions, i)
	}
	for i, name := range n.cfg.ChannelNamesSecondary {
		out[name] = at(n.cfg.ChannelDescSecondary, i)
	}
	return out
}

// TopicList returns the publishable topics registered via RegisterTopic.
func (n *Node) TopicList() map[string]string {
	return n.topics
}

func at(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}
