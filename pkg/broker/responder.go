package broker

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"midasnode/internal/catalog"
	"midasnode/internal/ring"
	"midasnode/internal/telemetry"
)

// DataSource is the snapshot collaborator a responder queries to answer
// metric and data requests: the node's primary and/or secondary rings,
// named by channel.
type DataSource interface {
	ChannelNames() (primary []string, secondary []string)
	PrimarySnapshot(win ring.TimeWindow) ring.PrimarySnapshot
	SecondarySnapshot(win ring.TimeWindow) ring.SecondarySnapshot
}

// NodeInfoProvider answers the command requests that are not data or
// metric queries. It is a narrow interface so that responder can be built
// without importing the node package directly (which itself depends on
// broker to construct the front-facing listener).
type NodeInfoProvider interface {
	NodeInfo() map[string]interface{}
	PublisherURL() string
	DataList() map[string]string
	TopicList() map[string]string
}

// Responder is one worker in the back-facing pool: it pulls a dispatched
// request from its inbox, answers it against the catalog and data source,
// and replies, then re-announces itself as idle.
type Responder struct {
	id      string
	broker  *Broker
	catalog *catalog.Catalog
	data    DataSource
	info    NodeInfoProvider
	logger  *zap.Logger
	reg     *telemetry.Registry
}

// NewResponder builds a responder identified by id.
func NewResponder(id string, b *Broker, cat *catalog.Catalog, data DataSource, info NodeInfoProvider, logger *zap.Logger, reg *telemetry.Registry) *Responder {
	return &Responder{id: id, broker: b, catalog: cat, data: data, info: info, logger: logger, reg: reg}
}

// Run registers the responder as idle and services dispatched requests
// until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) {
	inbox := r.broker.RegisterResponder(r.id)
	for {
		select {
		case env := <-inbox:
			reply := r.handle(env.req)
			env.reply <- reply
			if r.reg != nil {
				r.reg.ResponderServed.Inc()
			}
			r.broker.MarkReady(r.id)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Responder) handle(req Request) interface{} {
	switch req.Type {
	case RequestMetric:
		return r.handleMetric(req)
	case RequestData:
		return r.handleData(req)
	case RequestCommand:
		return r.handleCommand(req)
	default:
		r.countError()
		return map[string]string{"error": errUnrecognizedType}
	}
}

func (r *Responder) countError() {
	if r.reg != nil {
		r.reg.ResponderErrors.Inc()
	}
}

func windowOf(req Request) ring.TimeWindow {
	return ring.TimeWindow{End: req.TimeWindow[0], Duration: req.TimeWindow[1]}
}

// handleMetric answers a metric request: a list of "name[:ch1[,ch2…][:param…]]"
// specifiers, each resolved independently so one unknown specifier never
// fails the rest of the request.
func (r *Responder) handleMetric(req Request) map[string]interface{} {
	win := windowOf(req)
	primaryNames, secondaryNames := r.data.ChannelNames()
	primary := r.data.PrimarySnapshot(win)
	secondary := r.data.SecondarySnapshot(win)

	results := make(map[string]interface{}, len(req.Parameters))

	for _, spec := range req.Parameters {
		key := sanitizeKey(spec)
		parts := strings.Split(spec, ":")
		name := parts[0]

		var channels []string
		channelsFound := false
		if len(parts) > 1 {
			channels = splitChannels(parts[1])
			channelsFound = allChannelsKnown(channels, primaryNames, secondaryNames)
		}

		if !r.catalog.Has(name) || !channelsFound {
			r.countError()
			results[key] = errUnknownMetricOrChannel
			continue
		}

		data := collectChannelData(channels, primary, secondary, primaryNames, secondaryNames)
		params := parseParams(parts[2:])

		fn, _ := r.catalog.Get(name)
		value, err := catalog.Invoke(fn, data, params...)
		if err != nil {
			r.countError()
			results[key] = err.Error()
			continue
		}
		results[key] = value
	}

	return results
}

// handleData answers a raw-data request: a list of channel names, each
// resolved to {data, time} from whichever ring holds it.
func (r *Responder) handleData(req Request) map[string]interface{} {
	win := windowOf(req)
	primaryNames, secondaryNames := r.data.ChannelNames()
	primary := r.data.PrimarySnapshot(win)
	secondary := r.data.SecondarySnapshot(win)

	results := make(map[string]interface{}, len(req.Parameters))

	for _, cn := range req.Parameters {
		if i := indexOf(primaryNames, cn); i >= 0 {
			results[cn] = map[string]interface{}{"data": primary.Channels[i], "time": primary.Ages}
			continue
		}
		if i := indexOf(secondaryNames, cn); i >= 0 {
			results[cn] = map[string]interface{}{"data": secondary.Values[i], "time": secondary.Ages[i]}
		}
	}

	return results
}

// handleCommand answers a "name[:arg…]" command string; recognized names
// are listed in spec.md §4.5, anything else yields "unknown command".
func (r *Responder) handleCommand(req Request) interface{} {
	tmp := strings.Split(req.Command, ":")
	command := tmp[0]

	switch command {
	case CmdMetricList:
		return r.catalog.List()
	case CmdNodeInfo:
		return r.info.NodeInfo()
	case CmdPublisher:
		return r.info.PublisherURL()
	case CmdDataList:
		return r.info.DataList()
	case CmdTopicList:
		return r.info.TopicList()
	default:
		r.countError()
		return errUnknownCommand
	}
}

func sanitizeKey(spec string) string {
	key := strings.ReplaceAll(spec, ":", "_")
	key = strings.ReplaceAll(key, ",", "_")
	return key
}

func splitChannels(field string) []string {
	if strings.Contains(field, ",") {
		return strings.Split(field, ",")
	}
	return []string{field}
}

func allChannelsKnown(channels, primaryNames, secondaryNames []string) bool {
	for _, c := range channels {
		if indexOf(primaryNames, c) < 0 && indexOf(secondaryNames, c) < 0 {
			return false
		}
	}
	return true
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func parseParams(fields []string) []catalog.Param {
	params := make([]catalog.Param, 0, len(fields))
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			params = append(params, catalog.NewNumberParam(v))
		} else {
			params = append(params, catalog.NewTextParam(f))
		}
	}
	return params
}

// collectChannelData gathers values/ages for each requested channel, in
// the order requested, from whichever snapshot holds that channel.
func collectChannelData(channels []string, primary ring.PrimarySnapshot, secondary ring.SecondarySnapshot, primaryNames, secondaryNames []string) catalog.ChannelData {
	data := catalog.ChannelData{
		Values: make([][]float64, len(channels)),
		Ages:   make([][]float64, len(channels)),
	}
	for i, c := range channels {
		if idx := indexOf(primaryNames, c); idx >= 0 {
			data.Values[i] = primary.Channels[idx]
			data.Ages[i] = primary.Ages
			continue
		}
		if idx := indexOf(secondaryNames, c); idx >= 0 {
			data.Values[i] = secondary.Values[idx]
			data.Ages[i] = secondary.Ages[idx]
		}
	}
	return data
}
