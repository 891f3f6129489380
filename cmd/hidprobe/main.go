// hidprobe is a host-side diagnostic tool for the HID transport spec.md §4.1
// exposes on EP1: it opens the device by VID/PID, sends a single 64-byte
// frame, and prints whatever frame comes back.
//
// Grounded on
// _examples/guiperry-HASHER/internal/driver/device/usb_device.go's
// gousb.NewContext/OpenDeviceWithVIDPID/Config/Interface/EndpointOut/In
// sequence, adapted from that tool's ASIC transport to a HID interrupt
// transport.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/gousb"
)

const frameSize = 64

func main() {
	log.SetFlags(0)

	vid := flag.Uint("vid", 0x18d1, "vendor ID")
	pid := flag.Uint("pid", 0x5026, "product ID")
	payload := flag.String("payload", "", "hex-encoded payload to send, padded/truncated to 64 bytes")
	timeout := flag.Duration("timeout", 2*time.Second, "read timeout")
	flag.Parse()

	frame, err := buildFrame(*payload)
	if err != nil {
		log.Fatalf("hidprobe: %v", err)
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(*vid), gousb.ID(*pid))
	if err != nil {
		log.Fatalf("hidprobe: open device: %v", err)
	}
	if dev == nil {
		log.Fatalf("hidprobe: device not found (VID:0x%04x PID:0x%04x)", *vid, *pid)
	}
	defer dev.Close()

	cfg, err := dev.Config(1)
	if err != nil {
		log.Fatalf("hidprobe: set config: %v", err)
	}
	defer cfg.Close()

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		log.Fatalf("hidprobe: claim interface: %v", err)
	}
	defer intf.Close()

	epOut, err := intf.OutEndpoint(0x01)
	if err != nil {
		log.Fatalf("hidprobe: open OUT endpoint: %v", err)
	}
	epIn, err := intf.InEndpoint(0x81)
	if err != nil {
		log.Fatalf("hidprobe: open IN endpoint: %v", err)
	}

	if _, err := epOut.Write(frame); err != nil {
		log.Fatalf("hidprobe: write: %v", err)
	}

	resp := make([]byte, frameSize)
	n, err := readWithTimeout(epIn, resp, *timeout)
	if err != nil {
		log.Fatalf("hidprobe: read: %v", err)
	}

	fmt.Println(hex.EncodeToString(resp[:n]))
}

func buildFrame(hexPayload string) ([]byte, error) {
	frame := make([]byte, frameSize)
	if hexPayload == "" {
		return frame, nil
	}
	decoded, err := hex.DecodeString(hexPayload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	copy(frame, decoded)
	return frame, nil
}

// readWithTimeout reads one frame from ep, giving up after timeout. gousb
// endpoint reads block until the device responds or is unplugged, so a
// background goroutine plus a select is the only way to bound the wait.
func readWithTimeout(ep *gousb.InEndpoint, buf []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := ep.Read(buf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-time.After(timeout):
		return 0, fmt.Errorf("timed out after %s", timeout)
	}
}
