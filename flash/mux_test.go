package flash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usbarmory/h1secure/status"
	"github.com/usbarmory/h1secure/timer"
)

type muxClient struct {
	done bool
	code status.Code
}

func (c *muxClient) EraseDone(code status.Code)             { c.done = true; c.code = code }
func (c *muxClient) WriteDone(_ []uint32, code status.Code) { c.done = true; c.code = code }

func TestMuxServesQueuedUsersInOrder(t *testing.T) {
	hw := NewFakeHardware()
	src := timer.NewManualSource(time.Nanosecond)
	p := NewProgrammer(hw, src)
	mux := NewMux(p)

	c1, c2 := &muxClient{}, &muxClient{}
	u1 := mux.NewUser(c1)
	u2 := mux.NewUser(c2)

	require.NoError(t, u1.Erase(0))
	require.NoError(t, u2.Erase(1))

	// u2's erase has not been dispatched yet: it is still queued behind u1.
	require.False(t, c2.done)

	for i := 0; i < 200 && !c2.done; i++ {
		src.Advance(10 * time.Second)
		p.PollAlarm()
	}

	require.True(t, c1.done)
	require.True(t, c2.done)
	require.Equal(t, status.OK, c1.code)
	require.Equal(t, status.OK, c2.code)
}

func TestMuxReadBypassesQueue(t *testing.T) {
	hw := NewFakeHardware()
	src := timer.NewManualSource(time.Nanosecond)
	p := NewProgrammer(hw, src)
	mux := NewMux(p)

	c1 := &muxClient{}
	u1 := mux.NewUser(c1)
	require.NoError(t, u1.Erase(0))

	// Even while an erase is in flight, reads succeed immediately.
	_, err := u1.Read(0)
	require.NoError(t, err)
}
