package flash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usbarmory/h1secure/status"
	"github.com/usbarmory/h1secure/timer"
)

type recordingClient struct {
	eraseCode status.Code
	eraseDone bool

	writeCode status.Code
	writeData []uint32
	writeDone bool
}

func (c *recordingClient) EraseDone(code status.Code) {
	c.eraseCode = code
	c.eraseDone = true
}

func (c *recordingClient) WriteDone(data []uint32, code status.Code) {
	c.writeCode = code
	c.writeData = data
	c.writeDone = true
}

func newTestProgrammer() (*Programmer, *FakeHardware, *timer.ManualSource) {
	hw := NewFakeHardware()
	src := timer.NewManualSource(time.Nanosecond)
	p := NewProgrammer(hw, src)
	return p, hw, src
}

// runUntilDone advances the manual clock and polls the alarm until the
// client has observed a result or an iteration cap is hit.
func runUntilDone(t *testing.T, p *Programmer, src *timer.ManualSource, done func() bool) {
	t.Helper()

	for i := 0; i < 100 && !done(); i++ {
		src.Advance(10 * time.Second)
		p.PollAlarm()
	}

	require.True(t, done(), "operation did not complete")
}

// Scenario 3 (spec.md §8): write with one injected error then success.
func TestWriteWithRetrySucceeds(t *testing.T) {
	p, hw, src := newTestProgrammer()
	client := &recordingClient{}
	p.SetClient(client)

	hw.ErrorsRemaining = 1

	err := p.Write(1300, []uint32{0xFFFFABCD})
	require.NoError(t, err)

	runUntilDone(t, p, src, func() bool { return client.writeDone })

	require.Equal(t, status.OK, client.writeCode)
	require.Equal(t, []uint32{0xFFFFABCD}, client.writeData)

	word, err := p.Read(1300)
	require.NoError(t, err)
	require.Equal(t, uint32(0xFFFFABCD), word)
}

// Scenario 4 (spec.md §8): erase that errors on every attempt exhausts
// retries and still leaves the page readable.
func TestEraseExhaustsRetries(t *testing.T) {
	p, hw, src := newTestProgrammer()
	client := &recordingClient{}
	p.SetClient(client)

	hw.ErrorsRemaining = -1

	err := p.Erase(2)
	require.NoError(t, err)

	runUntilDone(t, p, src, func() bool { return client.eraseDone })

	require.Equal(t, status.HardwareFault, client.eraseCode)

	_, err = p.Read(2 * WordsPerPage)
	require.NoError(t, err)
}

func TestWriteRejectsOversizeAddress(t *testing.T) {
	p, _, _ := newTestProgrammer()
	err := p.Write(2*WordsPerBank, []uint32{1})
	require.Error(t, err)
	require.Equal(t, status.InvalidArgument, status.Of(err))
}

func TestWriteAtTopBoundarySucceeds(t *testing.T) {
	p, _, src := newTestProgrammer()
	client := &recordingClient{}
	p.SetClient(client)

	err := p.Write(2*WordsPerBank-1, []uint32{0})
	require.NoError(t, err)

	runUntilDone(t, p, src, func() bool { return client.writeDone })
	require.Equal(t, status.OK, client.writeCode)
}

func TestBusyRejectsConcurrentOperation(t *testing.T) {
	p, _, _ := newTestProgrammer()
	p.SetClient(&recordingClient{})

	require.NoError(t, p.Erase(0))
	err := p.Erase(1)
	require.Equal(t, status.Busy, status.Of(err))
}

func TestMultiChunkWriteSplitsAt32Words(t *testing.T) {
	p, hw, src := newTestProgrammer()
	client := &recordingClient{}
	p.SetClient(client)

	data := make([]uint32, 40)
	for i := range data {
		data[i] = uint32(i)
	}

	require.NoError(t, p.Write(0, data))
	runUntilDone(t, p, src, func() bool { return client.writeDone })

	require.Equal(t, status.OK, client.writeCode)
	for i, want := range data {
		require.Equal(t, want, hw.Read(i))
	}
}

func TestTimeoutWhenHardwareNeverCompletes(t *testing.T) {
	p, hw, src := newTestProgrammer()
	client := &recordingClient{}
	p.SetClient(client)

	hw.BusyForever = true

	require.NoError(t, p.Erase(0))
	runUntilDone(t, p, src, func() bool { return client.eraseDone })

	require.Equal(t, status.Timeout, client.eraseCode)
}
