package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestSubmitWaitsForIdleResponder confirms a submitted request blocks
// until a responder registers, then is served.
func TestSubmitWaitsForIdleResponder(t *testing.T) {
	b := New(zap.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resultCh := make(chan interface{}, 1)
	go func() {
		reply, err := b.Submit(ctx, Request{Type: RequestCommand, Command: CmdMetricList})
		require.NoError(t, err)
		resultCh <- reply
	}()

	time.Sleep(20 * time.Millisecond)
	inbox := b.RegisterResponder("r1")

	select {
	case env := <-inbox:
		env.reply <- map[string]string{"ok": "yes"}
		b.MarkReady("r1")
	case <-ctx.Done():
		t.Fatal("request never dispatched")
	}

	select {
	case <-resultCh:
	case <-ctx.Done():
		t.Fatal("submit never returned")
	}
}

// TestDispatchIsFIFO reproduces spec scenario S6: with a single responder,
// requests are served strictly in arrival order.
func TestDispatchIsFIFO(t *testing.T) {
	b := New(zap.NewNop(), nil)
	inbox := b.RegisterResponder("r1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var order []string
	done := make(chan struct{})

	go func() {
		for i := 0; i < 3; i++ {
			env := <-inbox
			order = append(order, env.req.Command)
			env.reply <- "ok"
			b.MarkReady("r1")
		}
		close(done)
	}()

	replies := make(chan interface{}, 3)
	for _, cmd := range []string{"a", "b", "c"} {
		go func(c string) {
			reply, err := b.Submit(ctx, Request{Type: RequestCommand, Command: c})
			require.NoError(t, err)
			replies <- reply
		}(cmd)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("responder never drained queue")
	}
	require.Equal(t, []string{"a", "b", "c"}, order)
}
