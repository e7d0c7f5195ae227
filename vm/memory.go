package cvere

import "fmt"

// Access flags for a memory region
const (
	accessRead = 1 << iota
	accessWrite
	accessExec
)

const memWords = 1 << 16

type region struct {
	name    string
	base    Word
	top     Word // inclusive
	access  uint8
	minRing Ring // least privileged ring allowed in
}

// The four fixed regions of the address map. Reserved holds the initial
// stack pointer target and admits no instruction-path access at all.
var regions = [...]region{
	{"code", 0x0000, 0x00FF, accessRead | accessExec, RingUser},
	{"data", 0x0100, 0xEFFF, accessRead | accessWrite, RingUser},
	{"stack", 0xF000, 0xFFFD, accessRead | accessWrite, RingUser},
	{"reserved", 0xFFFE, 0xFFFF, 0, RingKernel},
}

// memory is the flat 16-bit address space of 16-bit cells. Every
// instruction-path access goes through check; outside it, only the
// host-side image loaders consult the region table, for their bounds and
// execute checks. unlocked counts scoped protection relaxations taken out by the
// gateway around ring-0 handlers.
type memory struct {
	cells    [memWords]Word
	unlocked int
}

func regionAt(addr Word) *region {
	for i := range regions {
		if addr >= regions[i].base && addr <= regions[i].top {
			return &regions[i]
		}
	}
	// unreachable: the table covers 0x0000-0xFFFF
	return nil
}

// check is the single gatekeeper for region policy. Ring is tested
// first, so reserved-region touches from user code come back as
// protection faults; an operation the region never permits is an
// invalid access.
func (m *memory) check(addr Word, want uint8, ring Ring) *Fault {
	if m.unlocked > 0 {
		return nil
	}

	r := regionAt(addr)
	if ring > r.minRing {
		return &Fault{Kind: ProtectionFault, Addr: addr, Ring: ring}
	}
	if r.access&want != want {
		return &Fault{Kind: InvalidAccess, Addr: addr, Ring: ring}
	}
	return nil
}

func (m *memory) loadWord(addr Word, ring Ring) (Word, *Fault) {
	if flt := m.check(addr, accessRead, ring); flt != nil {
		return 0, flt
	}
	return m.cells[addr], nil
}

func (m *memory) storeWord(addr, value Word, ring Ring) *Fault {
	if flt := m.check(addr, accessWrite, ring); flt != nil {
		return flt
	}
	m.cells[addr] = value
	return nil
}

// fetchInstruction requires execute permission on top of read
func (m *memory) fetchInstruction(addr Word, ring Ring) (Word, *Fault) {
	if flt := m.check(addr, accessRead|accessExec, ring); flt != nil {
		return 0, flt
	}
	return m.cells[addr], nil
}

// loadImage copies a word image in from the host side, bypassing ring
// policy but refusing to run off the end of memory or into the reserved
// cells
func (m *memory) loadImage(words []Word, base Word) error {
	end := int(base) + len(words)
	if end > memWords {
		return fmt.Errorf("image of %d words at 0x%04x overflows memory", len(words), base)
	}
	if end > int(regions[3].base) {
		return fmt.Errorf("image of %d words at 0x%04x reaches reserved memory", len(words), base)
	}

	copy(m.cells[base:], words)
	return nil
}

// unlock/lock bracket a ring-0 handler call; while the depth is nonzero
// the region policy is suspended so reality-manipulation handlers can
// rewrite code and reserved cells
func (m *memory) unlock() {
	m.unlocked++
}

func (m *memory) lock() {
	m.unlocked--
}
