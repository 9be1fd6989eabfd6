// Package broker implements the two-tier request broker: a front-facing
// listener that accepts client requests, a FIFO queue of idle responders,
// and the responder pool that parses and answers metric/data/command
// queries.
package broker

// RequestType names the three recognized request shapes (spec.md §4.5),
// plus anything else, which is answered with an "error: not recognized"
// reply.
type RequestType string

const (
	RequestMetric  RequestType = "metric"
	RequestData    RequestType = "data"
	RequestCommand RequestType = "command"
)

// TimeWindow is the wire form of ring.TimeWindow: [end_offset_seconds,
// duration_seconds].
type TimeWindow [2]float64

// Request is the wire request envelope. Address is an opaque client
// routing value carried as the client sent it; the broker and responder
// never set or interpret it. Replies return over the client's own
// WebSocket connection, not by Address.
type Request struct {
	Type       RequestType `json:"type"`
	Address    string      `json:"address"`
	Parameters []string    `json:"parameters,omitempty"`
	TimeWindow TimeWindow  `json:"timewindow,omitempty"`
	Command    string      `json:"command,omitempty"`
}

// Recognized command names (spec.md §4.5/§6).
const (
	CmdMetricList = "get_metric_list"
	CmdNodeInfo   = "get_nodeinfo"
	CmdPublisher  = "get_publisher"
	CmdDataList   = "get_data_list"
	CmdTopicList  = "get_topic_list"
)

const (
	errUnrecognizedType   = "not recognized"
	errUnknownCommand     = "unknown command"
	errUnknownMetricOrChannel = "unknown metric and/or channel"
)

// envelope pairs a parsed request with the in-process responder dispatch
// path. The broker's back-facing endpoint is realized as a channel rather
// than a loopback socket, since spec.md §3 describes it as loopback-only —
// see DESIGN.md for the rationale.
type envelope struct {
	req   Request
	reply chan interface{}
}
