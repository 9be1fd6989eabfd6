package beacon

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBeaconBroadcastsStatusPayload(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	b, err := New(listener.LocalAddr().String(), "basenode", "sensor", "00", "127.0.0.1", 5001, 20*time.Millisecond, zap.NewNop(), nil)
	require.NoError(t, err)
	defer b.Close()

	b.SetStatus(StatusOnline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	buf := make([]byte, 4096)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	var p payload
	require.NoError(t, json.Unmarshal(buf[:n], &p))

	require.Equal(t, "basenode", p.Name)
	require.Equal(t, StatusOnline, p.Status)
	require.Equal(t, 5001, p.Port)
}
