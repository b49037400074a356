package xdmcp

import (
	"testing"

	"github.com/raspberrypi-ui/lightdm-bullseye/xauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDisplayServerReturnsNilForNonXSession(t *testing.T) {
	seat := NewSeat(&IncomingSession{PeerAddress: "192.0.2.1", DisplayNumber: 0})
	server := seat.CreateDisplayServer(LoginSessionRequest{Type: "console"})
	assert.Nil(t, server)
}

func TestCreateDisplayServerReturnsSameInstanceAcrossCalls(t *testing.T) {
	record, err := xauth.NewRecord("192.0.2.1:0", "0")
	require.NoError(t, err)
	seat := NewSeat(&IncomingSession{PeerAddress: "192.0.2.1", DisplayNumber: 0, Authority: record})

	first := seat.CreateDisplayServer(LoginSessionRequest{Type: "x"})
	require.NotNil(t, first)
	second := seat.CreateDisplayServer(LoginSessionRequest{Type: "x"})

	assert.Same(t, first, second)
	assert.Equal(t, "192.0.2.1:0", first.Address())
}

func TestRemoteXServerStartStopChainBaseExactlyOnce(t *testing.T) {
	r := NewRemoteXServer("203.0.113.5", 3, nil)

	starts, stops := 0, 0
	r.OnStart(func() { starts++ })
	r.OnStop(func() { stops++ })

	require.NoError(t, r.Start())
	require.NoError(t, r.Start())
	r.Stop()
	r.Stop()

	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}
