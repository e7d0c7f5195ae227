package cvere

import "testing"

func TestRegionPolicy(t *testing.T) {
	m := &memory{}

	// writes to code are refused even for the kernel
	flt := m.storeWord(0x0010, 1, RingKernel)
	assert(t, flt != nil && flt.Kind == InvalidAccess, "code store fault = %v", flt)

	// reserved cells: ring check first, so user code sees a protection
	// fault and the kernel an invalid access
	_, flt = m.loadWord(0xFFFE, RingUser)
	assert(t, flt != nil && flt.Kind == ProtectionFault, "reserved user load fault = %v", flt)
	_, flt = m.loadWord(0xFFFE, RingKernel)
	assert(t, flt != nil && flt.Kind == InvalidAccess, "reserved kernel load fault = %v", flt)

	// data and stack are read/write for everyone
	assert(t, m.storeWord(0x0100, 0xBEEF, RingUser) == nil, "data store refused")
	v, flt := m.loadWord(0x0100, RingUser)
	assert(t, flt == nil && v == 0xBEEF, "data load = %#x (%v)", v, flt)
	assert(t, m.storeWord(0xF000, 1, RingUser) == nil, "stack store refused")

	// only code is executable
	_, flt = m.fetchInstruction(0x0000, RingUser)
	assert(t, flt == nil, "code fetch refused: %v", flt)
	_, flt = m.fetchInstruction(0x0200, RingUser)
	assert(t, flt != nil && flt.Kind == InvalidAccess, "data fetch fault = %v", flt)
}

func TestScopedUnlock(t *testing.T) {
	m := &memory{}

	m.unlock()
	assert(t, m.storeWord(0x0000, 0x1234, RingKernel) == nil, "unlocked code store refused")
	assert(t, m.storeWord(0xFFFE, 0xF00D, RingKernel) == nil, "unlocked reserved store refused")
	m.lock()

	// protection is back once the scope closes
	flt := m.storeWord(0x0000, 0, RingKernel)
	assert(t, flt != nil, "code store should be refused again")
	assert(t, m.cells[0x0000] == 0x1234 && m.cells[0xFFFE] == 0xF00D, "unlocked writes lost")
}

func TestImageLoader(t *testing.T) {
	m := &memory{}

	// refuses to run off the end of memory
	err := m.loadImage(make([]Word, 32), 0xFFF0)
	assert(t, err != nil, "overflowing image accepted")

	// refuses to touch the reserved cells
	err = m.loadImage(make([]Word, 4), 0xFFFC)
	assert(t, err != nil, "image reaching reserved cells accepted")

	// data images are fine
	err = m.loadImage([]Word{1, 2, 3}, 0x0100)
	assert(t, err == nil, "data image refused: %v", err)
	assert(t, m.cells[0x0102] == 3, "image not copied")
}

func TestLoadProgramBounds(t *testing.T) {
	vm := NewVirtualMachine()

	// the whole image must sit in executable memory
	err := vm.LoadProgram(make([]Word, 32), 0x00F0)
	assert(t, err != nil, "program spilling out of code accepted")

	err = vm.LoadProgram([]Word{0xFFFF}, 0x0200)
	assert(t, err != nil, "program load into data accepted")

	err = vm.LoadProgram(make([]Word, 256), 0x0000)
	assert(t, err == nil, "full code image refused: %v", err)

	// data blobs go through LoadData without the execute requirement
	err = vm.LoadData([]Word{7}, 0x0200)
	assert(t, err == nil, "data load refused: %v", err)
	assert(t, vm.Peek(0x0200) == 7, "data not loaded")
}
