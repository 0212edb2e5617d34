package memory

import "github.com/alttpo/snes/emulator/memory"

// Overlay covers a bus window with two regions: addresses in [start, end] go to top,
// every other address of the window goes to base. The bus maps 16 byte segments, so
// a status range that does not fill whole segments is attached through an Overlay
// spanning the segments around it.
type Overlay struct {
	top        memory.Memory
	base       memory.Memory
	start, end uint32
	// first and last bus address of the window
	lo, hi uint32
}

// NewOverlay returns an Overlay for [start, end] widened to 16 byte segments. Window
// returns the bounds to attach it at.
func NewOverlay(top, base memory.Memory, start, end uint32) *Overlay {
	return &Overlay{
		top:   top,
		base:  base,
		start: start,
		end:   end,
		lo:    start &^ 0xF,
		hi:    end | 0xF,
	}
}

func (o *Overlay) Window() (start, end uint32) { return o.lo, o.hi }

func (o *Overlay) route(address uint32) memory.Memory {
	if address >= o.start && address <= o.end {
		return o.top
	}
	return o.base
}

func (o *Overlay) Read(address uint32) byte {
	return o.route(address).Read(address)
}

func (o *Overlay) Write(address uint32, value byte) {
	o.route(address).Write(address, value)
}

// Shutdown is passed on by the bus to base through its own attachment.
func (o *Overlay) Shutdown() {}

func (o *Overlay) Size() uint32 { return o.hi - o.lo + 1 }

func (o *Overlay) Clear() {
	o.top.Clear()
}

func (o *Overlay) Dump(address uint32) []byte {
	data := make([]byte, 0, o.hi-address+1)
	for a := address; a <= o.hi; a++ {
		data = append(data, o.Read(a))
	}
	return data
}
