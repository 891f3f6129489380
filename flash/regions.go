//go:build tamago && arm
// +build tamago,arm

package flash

import (
	"github.com/usbarmory/h1secure/bits"
	"github.com/usbarmory/h1secure/internal/reg"
)

// Region describes one entry of the boot-time memory-protection region
// table spec.md §6.4 requires: CPU data regions 0-3, DMA regions 0-3, USB
// DMA regions 0-3, and the inactive-RO/RW flash regions of the two-slot
// firmware layout, each enabled for read+write. Grounded on
// original_source/kernel/h1/src/globalsec.rs's REGION_CTRL bitfield
// (EN/RD_EN/WR_EN) and its per-bus-master region bank layout
// (cpu0_d_region*, ddma0_region*, dusb0_region*, flash_region*).
type Region struct {
	Name    string
	CtrlOff uint32
	Read    bool
	Write   bool
}

const (
	regionEN   = 0
	regionRD   = 1
	regionWR   = 2
)

// BootRegions is the fixed table spec.md §6.4 names. It does not include the
// active slot's regions: those are locked down by the two-slot bootloader
// before this module runs, and are intentionally absent here.
func BootRegions(cpu0Base, ddma0Base, dusb0Base, flashBase uint32) []Region {
	regions := make([]Region, 0, 14)

	for i := uint32(0); i < 4; i++ {
		regions = append(regions, Region{Name: "cpu0_d", CtrlOff: cpu0Base + 4*i, Read: true, Write: true})
	}
	for i := uint32(0); i < 4; i++ {
		regions = append(regions, Region{Name: "ddma0", CtrlOff: ddma0Base + 4*i, Read: true, Write: true})
	}
	for i := uint32(0); i < 4; i++ {
		regions = append(regions, Region{Name: "dusb0", CtrlOff: dusb0Base + 4*i, Read: true, Write: true})
	}

	// Inactive-slot flash regions: RO and RW halves of the non-running
	// firmware slot, per spec.md §6.4.
	regions = append(regions,
		Region{Name: "flash_inactive_ro", CtrlOff: flashBase, Read: true, Write: true},
		Region{Name: "flash_inactive_rw", CtrlOff: flashBase + 4, Read: true, Write: true},
	)

	return regions
}

// ProgramRegions writes the region-control register for each entry in
// table. This is the only flash-package function that touches the register
// primitive directly; it is a one-shot boot action, never exercised through
// the Programmer/Mux hot path.
func ProgramRegions(table []Region) {
	for _, r := range table {
		var v uint32
		bits.Set(&v, regionEN)
		if r.Read {
			bits.Set(&v, regionRD)
		}
		if r.Write {
			bits.Set(&v, regionWR)
		}
		reg.Write(r.CtrlOff, v)
	}
}
