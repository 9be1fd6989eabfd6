package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"midasnode/internal/catalog"
	"midasnode/internal/ring"
)

type fakeDataSource struct {
	primaryNames   []string
	secondaryNames []string
	primary        ring.PrimarySnapshot
	secondary      ring.SecondarySnapshot
}

func (f *fakeDataSource) ChannelNames() ([]string, []string) { return f.primaryNames, f.secondaryNames }
func (f *fakeDataSource) PrimarySnapshot(win ring.TimeWindow) ring.PrimarySnapshot  { return f.primary }
func (f *fakeDataSource) SecondarySnapshot(win ring.TimeWindow) ring.SecondarySnapshot {
	return f.secondary
}

type fakeInfo struct{}

func (fakeInfo) NodeInfo() map[string]interface{} { return map[string]interface{}{"name": "n"} }
func (fakeInfo) PublisherURL() string             { return "nats://127.0.0.1:4222" }
func (fakeInfo) DataList() map[string]string      { return map[string]string{"x": ""} }
func (fakeInfo) TopicList() map[string]string      { return map[string]string{} }

func newTestResponder(t *testing.T, cat *catalog.Catalog) (*Responder, *Broker) {
	t.Helper()
	b := New(zap.NewNop(), nil)
	data := &fakeDataSource{
		primaryNames: []string{"x"},
		primary: ring.PrimarySnapshot{
			Channels: [][]float64{{10, 20, 30}},
			Ages:     []float64{2, 1, 0},
		},
	}
	r := NewResponder("r1", b, cat, data, fakeInfo{}, zap.NewNop(), nil)
	return r, b
}

func meanFn(data catalog.ChannelData, params ...catalog.Param) (interface{}, error) {
	vals := data.Values[0]
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), nil
}

// TestHandleMetricUnknown reproduces spec scenario S4: an unregistered
// metric name yields the literal unknown-metric-and/or-channel string,
// keyed by the sanitized specifier.
func TestHandleMetricUnknown(t *testing.T) {
	cat := catalog.New()
	cat.Register("test", "", meanFn)
	r, _ := newTestResponder(t, cat)

	req := Request{Type: RequestMetric, Parameters: []string{"nope:x"}, TimeWindow: TimeWindow{0, 1}}
	reply := r.handle(req).(map[string]interface{})

	assert.Equal(t, errUnknownMetricOrChannel, reply["nope_x"])
}

func TestHandleMetricKnown(t *testing.T) {
	cat := catalog.New()
	cat.Register("mean", "arithmetic mean", meanFn)
	r, _ := newTestResponder(t, cat)

	req := Request{Type: RequestMetric, Parameters: []string{"mean:x"}, TimeWindow: TimeWindow{0, 10}}
	reply := r.handle(req).(map[string]interface{})

	require.Contains(t, reply, "mean_x")
	assert.InDelta(t, 20.0, reply["mean_x"], 1e-9)
}

func TestHandleMetricMissingChannel(t *testing.T) {
	cat := catalog.New()
	cat.Register("mean", "", meanFn)
	r, _ := newTestResponder(t, cat)

	req := Request{Type: RequestMetric, Parameters: []string{"mean:nosuchchannel"}, TimeWindow: TimeWindow{0, 10}}
	reply := r.handle(req).(map[string]interface{})

	assert.Equal(t, errUnknownMetricOrChannel, reply["mean_nosuchchannel"])
}

func TestHandleDataPrimaryChannel(t *testing.T) {
	r, _ := newTestResponder(t, catalog.New())

	req := Request{Type: RequestData, Parameters: []string{"x"}, TimeWindow: TimeWindow{0, 10}}
	reply := r.handle(req).(map[string]interface{})

	entry := reply["x"].(map[string]interface{})
	assert.Equal(t, []float64{10, 20, 30}, entry["data"])
}

// TestHandleCommandPublisher reproduces spec scenario S5: a get_publisher
// command returns the publisher URL string.
func TestHandleCommandPublisher(t *testing.T) {
	r, _ := newTestResponder(t, catalog.New())

	req := Request{Type: RequestCommand, Command: CmdPublisher}
	reply := r.handle(req)

	assert.Equal(t, "nats://127.0.0.1:4222", reply)
}

func TestHandleCommandUnknown(t *testing.T) {
	r, _ := newTestResponder(t, catalog.New())

	req := Request{Type: RequestCommand, Command: "nonsense"}
	reply := r.handle(req)

	assert.Equal(t, errUnknownCommand, reply)
}

func TestHandleUnrecognizedType(t *testing.T) {
	r, _ := newTestResponder(t, catalog.New())

	reply := r.handle(Request{Type: "bogus"}).(map[string]string)
	assert.Equal(t, errUnrecognizedType, reply["error"])
}

// TestResponderRunServesDispatchedRequests exercises the Run loop against
// a live broker end to end.
func TestResponderRunServesDispatchedRequests(t *testing.T) {
	cat := catalog.New()
	cat.Register("mean", "", meanFn)
	r, b := newTestResponder(t, cat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()

	reply, err := b.Submit(ctx2, Request{Type: RequestMetric, Parameters: []string{"mean:x"}, TimeWindow: TimeWindow{0, 10}})
	require.NoError(t, err)

	m := reply.(map[string]interface{})
	assert.InDelta(t, 20.0, m["mean_x"], 1e-9)
}
