package nvcounter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usbarmory/h1secure/flash"
	"github.com/usbarmory/h1secure/status"
	"github.com/usbarmory/h1secure/timer"
)

type recordingClient struct {
	initDone bool
	initCode status.Code

	incrDone bool
	incrCode status.Code
}

func (c *recordingClient) InitializeDone(code status.Code) {
	c.initDone = true
	c.initCode = code
}

func (c *recordingClient) IncrementDone(code status.Code) {
	c.incrDone = true
	c.incrCode = code
}

func newTestCounter() (*Counter, *flash.Programmer, *timer.ManualSource, *recordingClient) {
	hw := flash.NewFakeHardware()
	src := timer.NewManualSource(time.Nanosecond)
	p := flash.NewProgrammer(hw, src)
	mux := flash.NewMux(p)

	c := New(mux, 0, 1)
	client := &recordingClient{}
	c.SetClient(client)

	return c, p, src, client
}

// pump drives the programmer's alarm until the counter is idle again or an
// iteration cap is hit.
func pump(t *testing.T, c *Counter, p *flash.Programmer, src *timer.ManualSource) {
	t.Helper()

	for i := 0; i < 2000 && !c.Idle(); i++ {
		src.Advance(10 * time.Second)
		p.PollAlarm()
	}

	require.True(t, c.Idle(), "counter operation did not complete")
}

func TestInitializeThenReadIsZero(t *testing.T) {
	c, p, src, client := newTestCounter()

	require.NoError(t, c.Initialize())
	pump(t, c, p, src)

	require.True(t, client.initDone)
	require.Equal(t, status.OK, client.initCode)
	require.Equal(t, uint32(0), c.Value())
}

func TestIncrementReturnsStrictlyIncreasingValues(t *testing.T) {
	c, p, src, client := newTestCounter()

	require.NoError(t, c.Initialize())
	pump(t, c, p, src)

	var last uint32
	for i := 0; i < 10; i++ {
		value, err := c.ReadAndIncrement()
		require.NoError(t, err)
		pump(t, c, p, src)

		require.True(t, client.incrDone)
		require.Equal(t, status.OK, client.incrCode)

		if i > 0 {
			require.Equal(t, last+1, value)
		}
		last = value
		client.incrDone = false
	}

	require.Equal(t, uint32(9), last)
	require.Equal(t, uint32(10), c.Value())
}

func TestBusyRejectsConcurrentCall(t *testing.T) {
	c, p, src, _ := newTestCounter()

	require.NoError(t, c.Initialize())
	pump(t, c, p, src)

	_, err := c.ReadAndIncrement()
	require.NoError(t, err)

	_, err = c.ReadAndIncrement()
	require.Equal(t, status.Busy, status.Of(err))
}

// Scenario 2 (spec.md §8): after CountsPerLowPage increments from a clean
// init, the reported value equals CountsPerLowPage-1; the next increment
// crosses the rollover and returns CountsPerLowPage.
func TestRolloverAtCountsPerLowPage(t *testing.T) {
	c, p, src, client := newTestCounter()

	require.NoError(t, c.Initialize())
	pump(t, c, p, src)

	var value uint32
	for i := 0; i < CountsPerLowPage; i++ {
		var err error
		value, err = c.ReadAndIncrement()
		require.NoError(t, err)
		pump(t, c, p, src)
		require.Equal(t, status.OK, client.incrCode)
		client.incrDone = false
	}
	require.Equal(t, uint32(CountsPerLowPage-1), value)

	value, err := c.ReadAndIncrement()
	require.NoError(t, err)
	pump(t, c, p, src)

	require.Equal(t, status.OK, client.incrCode)
	require.Equal(t, uint32(CountsPerLowPage), value)
	require.Equal(t, uint32(CountsPerLowPage+1), c.Value())
}
