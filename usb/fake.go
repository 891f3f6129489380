package usb

// FakeHardware is a host-testable Hardware implementation that records every
// call Controller makes, analogous to flash.FakeHardware and spi.FakeHost.
type FakeHardware struct {
	PHYSelector int
	ResetCount  int
	Unmasked    bool
	Disconnected bool
	Address     uint8
	StalledIn   bool
	StalledOut  bool
}

func (h *FakeHardware) SetPHY(selector int) { h.PHYSelector = selector }

func (h *FakeHardware) Reset() { h.ResetCount++ }

func (h *FakeHardware) UnmaskInterrupts() { h.Unmasked = true }

func (h *FakeHardware) ReleaseSoftDisconnect() { h.Disconnected = true }

func (h *FakeHardware) SetAddress(addr uint8) { h.Address = addr }

func (h *FakeHardware) Stall(in, out bool) {
	h.StalledIn = in
	h.StalledOut = out
}

// FakeInterruptSource is an InterruptSource double driven directly by tests,
// standing in for the tamago&&arm register decode.
type FakeInterruptSource struct {
	Pending     uint32
	EP0         SetupPacket
	EP0Bits     [4]bool // xferCompleted, setupPhaseDone, statusPhaseReceived, setupReady
	EP1OutFrame []byte
}

func (s *FakeInterruptSource) AllEndpointInterrupts() uint32 { return s.Pending }

func (s *FakeInterruptSource) EP0Status() (xferCompleted, setupPhaseDone, statusPhaseReceived, setupReady bool, setup SetupPacket) {
	return s.EP0Bits[0], s.EP0Bits[1], s.EP0Bits[2], s.EP0Bits[3], s.EP0
}

func (s *FakeInterruptSource) EP1OutData() []byte { return s.EP1OutFrame }

// FakeHIDClient records EP1 frame events for assertions.
type FakeHIDClient struct {
	Received    [][]byte
	Transmitted int
}

func (f *FakeHIDClient) FrameReceived(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.Received = append(f.Received, cp)
}

func (f *FakeHIDClient) FrameTransmitted() { f.Transmitted++ }
