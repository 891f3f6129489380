package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/h1secure/irq"
	"github.com/usbarmory/h1secure/status"
)

func newTestController() (*Controller, *FakeHardware) {
	hw := &FakeHardware{}
	device := NewDeviceDescriptor(0, 0, 0, 0x18d1, 0x5026)
	strings := StringTable{
		LanguageID:   0x0409,
		Manufacturer: "Google",
		Product:      "H1",
		Serial:       "0",
		Interface:    "HID",
		Platform:     "Titan",
		Board:        "dragonclaw",
	}
	c := Init(hw, device, strings)
	return c, hw
}

func TestInitResetsUnmasksAndReleasesDisconnect(t *testing.T) {
	_, hw := newTestController()
	assert.Equal(t, 1, hw.ResetCount)
	assert.True(t, hw.Unmasked)
	assert.True(t, hw.Disconnected)
}

func TestGetDeviceDescriptorReturns18Bytes(t *testing.T) {
	c, _ := newTestController()

	setup := SetupPacket{
		BmRequestType: 0x80, // device-to-host, standard, device
		BRequest:      reqGetDescriptor,
		WValue:        uint16(DescriptorDevice) << 8,
		WLength:       18,
	}
	c.HandleInterrupt(true, false, false, true, setup)

	require.Len(t, c.LastINData, 18)
	assert.Equal(t, byte(0xd1), c.LastINData[8])
	assert.Equal(t, byte(0x18), c.LastINData[9])
	assert.Equal(t, byte(0x26), c.LastINData[10])
	assert.Equal(t, byte(0x50), c.LastINData[11])
	assert.False(t, c.Stalled)
}

func TestSetAddressTakesEffectOnAck(t *testing.T) {
	c, hw := newTestController()

	setup := SetupPacket{
		BmRequestType: 0x00, // host-to-device, standard, device
		BRequest:      reqSetAddress,
		WValue:        7,
	}
	c.HandleInterrupt(true, false, false, true, setup)

	assert.Equal(t, uint8(7), hw.Address)
	assert.Equal(t, uint8(7), c.address)
	assert.False(t, c.addressPending)
}

func TestUnknownSetupStallsBothFIFOs(t *testing.T) {
	c, hw := newTestController()

	// host-to-device, standard, endpoint: unmatched by the dispatch matrix.
	setup := SetupPacket{BmRequestType: 0x02, BRequest: 0xff}
	c.HandleInterrupt(true, false, false, true, setup)

	assert.True(t, c.Stalled)
	assert.True(t, hw.StalledIn)
	assert.True(t, hw.StalledOut)
}

func TestCaseBStallsWithoutDispatch(t *testing.T) {
	c, _ := newTestController()
	c.HandleInterrupt(false, true, false, false, SetupPacket{})
	assert.True(t, c.Stalled)
}

func TestStringDescriptorZeroIsFourByteLanguageDescriptor(t *testing.T) {
	c, _ := newTestController()

	setup := SetupPacket{
		BmRequestType: 0x80,
		BRequest:      reqGetDescriptor,
		WValue:        uint16(DescriptorString) << 8,
		WLength:       255,
	}
	c.HandleInterrupt(true, false, false, true, setup)

	require.Len(t, c.LastINData, 4)
	assert.Equal(t, byte(0x09), c.LastINData[2])
	assert.Equal(t, byte(0x04), c.LastINData[3])
}

func TestStringDescriptorOutOfRangeStalls(t *testing.T) {
	c, _ := newTestController()

	setup := SetupPacket{
		BmRequestType: 0x80,
		BRequest:      reqGetDescriptor,
		WValue:        uint16(DescriptorString)<<8 | 99,
		WLength:       255,
	}
	c.HandleInterrupt(true, false, false, true, setup)

	assert.True(t, c.Stalled)
}

func TestEP1RoundTripNotifiesHIDClient(t *testing.T) {
	c, _ := newTestController()
	client := &FakeHIDClient{}
	c.SetHIDClient(client)

	require.NoError(t, c.PutFrame([]byte{1, 2, 3}))
	c.OnEP1InComplete()
	assert.Equal(t, 1, client.Transmitted)

	c.OnEP1OutComplete([]byte{4, 5, 6})
	require.Len(t, client.Received, 1)
	assert.Equal(t, []byte{4, 5, 6}, client.Received[0])

	out := make([]byte, 3)
	n := c.GetFrame(out)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{4, 5, 6}, out)
}

func TestRingIndexInvariantHoldsAcrossAdvances(t *testing.T) {
	r := NewRing(2, 8)
	for i := 0; i < 10; i++ {
		r.Advance()
		assert.Equal(t, r.NextIndex(), (r.LastIndex()+1)%r.Depth())
	}
}

func TestNotifyEnumeratedFiresOnceOnSetConfiguration(t *testing.T) {
	c, _ := newTestController()

	var calls int
	c.NotifyEnumerated(func(code status.Code, arg uint32) { calls++ }, 0)

	setup := SetupPacket{
		BmRequestType: 0x00,
		BRequest:      reqSetConfig,
		WValue:        1,
	}
	c.HandleInterrupt(true, false, false, true, setup)
	c.HandleInterrupt(true, false, false, true, setup)

	assert.Equal(t, 1, calls)
}

func TestEP1InBusyWhenNotHostReady(t *testing.T) {
	c, _ := newTestController()
	require.NoError(t, c.PutFrame([]byte{1}))
	err := c.PutFrame([]byte{2})
	require.Error(t, err)
}

func TestRegisterInterruptRoutesEP0AndEP1(t *testing.T) {
	c, _ := newTestController()
	client := &FakeHIDClient{}
	c.SetHIDClient(client)

	router := irq.NewRouter()
	src := &FakeInterruptSource{}
	c.RegisterInterrupt(router, 42, src)

	src.Pending = epIntOUT0
	src.EP0Bits = [4]bool{true, false, false, true}
	src.EP0 = SetupPacket{
		BmRequestType: 0x80,
		BRequest:      reqGetDescriptor,
		WValue:        uint16(DescriptorDevice) << 8,
		WLength:       18,
	}
	router.Handle(42)
	require.Len(t, c.LastINData, 18)

	src.Pending = epIntOUT1
	src.EP1OutFrame = []byte{9, 9, 9}
	router.Handle(42)
	require.Len(t, client.Received, 1)
	assert.Equal(t, []byte{9, 9, 9}, client.Received[0])
}
