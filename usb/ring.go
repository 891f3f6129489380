package usb

// Ownership is the descriptor ownership state of spec.md §3's DMA
// descriptor ring: hardware and firmware hand a descriptor back and forth
// by flipping this field rather than through any lock.
type Ownership int

const (
	// HostReady: firmware has armed this descriptor for the next host
	// transfer.
	HostReady Ownership = iota
	// DmaBusy: hardware is actively transferring into/out of this
	// descriptor's buffer.
	DmaBusy
	// DmaDone: hardware finished the transfer; firmware has not yet
	// consumed it.
	DmaDone
	// HostBusy: firmware is consuming (or producing, for IN) the
	// descriptor's buffer.
	HostBusy
)

// Descriptor is one slot of a Ring.
type Descriptor struct {
	Owner Ownership
	Data  []byte
	Len   int
}

// Ring is a fixed-depth array of descriptors sharing one backing buffer,
// used for EP0's double-buffered OUT ring, EP0's 4-deep IN ring (per
// spec.md §4.1, its four descriptors sharing a single 256-byte buffer), and
// EP1's single-descriptor IN/OUT rings. Each Ring has its own backing array.
//
// Grounded on the OpenTitan ownership-bit DMA descriptor model spec.md §3
// describes, in place of
// _examples/usbarmory-tamago/soc/imx6/usb/endpoint.go's i.MX6 dQH/dTD
// descriptor-queue format, which has no equivalent ownership encoding.
type Ring struct {
	depth   int
	descs   []Descriptor
	lastIdx int
	nextIdx int
}

// NewRing returns a Ring of depth descriptors, each bufSize bytes, carved
// out of one shared backing array.
func NewRing(depth, bufSize int) *Ring {
	backing := make([]byte, depth*bufSize)
	descs := make([]Descriptor, depth)
	for i := range descs {
		descs[i] = Descriptor{Owner: HostReady, Data: backing[i*bufSize : (i+1)*bufSize]}
	}
	return &Ring{depth: depth, descs: descs, lastIdx: depth - 1, nextIdx: 0}
}

// Depth returns the ring's descriptor count.
func (r *Ring) Depth() int { return r.depth }

// Next returns the descriptor hardware will use for the next transfer.
func (r *Ring) Next() *Descriptor { return &r.descs[r.nextIdx] }

// NextIndex returns the index Next refers to.
func (r *Ring) NextIndex() int { return r.nextIdx }

// LastIndex returns the index of the most recently advanced-past
// descriptor.
func (r *Ring) LastIndex() int { return r.lastIdx }

// Advance consumes the descriptor at NextIndex and rotates to the
// following slot, maintaining the invariant
// (LastIndex()+1) mod Depth() == NextIndex() spec.md §8 requires.
func (r *Ring) Advance() int {
	consumed := r.nextIdx
	r.lastIdx = consumed
	r.nextIdx = (consumed + 1) % r.depth
	return consumed
}

// Rearm resets the descriptor at index back to HostReady, ready for
// hardware to use again.
func (r *Ring) Rearm(index int) {
	r.descs[index].Owner = HostReady
	r.descs[index].Len = 0
}
