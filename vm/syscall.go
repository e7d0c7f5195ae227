package cvere

import (
	"bufio"
	"io"
)

// SyscallFunc is a host-provided trap handler. It gets a borrowed view of
// the machine through the HostContext and must not retain it past return.
// The returned word replaces R1.
type SyscallFunc func(h *HostContext) (Word, error)

// Syscall pairs a handler with the least privileged ring allowed to
// invoke it.
type Syscall struct {
	Name    string
	MinRing Ring
	Fn      SyscallFunc
}

// HostContext is the view handed to syscall handlers. Memory accesses are
// performed at the handler's declared ring, not the caller's.
type HostContext struct {
	vm   *VM
	ring Ring
}

func (h *HostContext) Reg(i uint8) Word       { return h.vm.regs.read(i) }
func (h *HostContext) SetReg(i uint8, v Word) { h.vm.regs.write(i, v) }
func (h *HostContext) Ring() Ring             { return h.vm.regs.ring }
func (h *HostContext) Cycles() uint64         { return h.vm.cycles }

// SetRing is the only privilege transition in the machine; instructions
// cannot write CPL.
func (h *HostContext) SetRing(r Ring) { h.vm.regs.setRing(r) }

func (h *HostContext) Load(addr Word) (Word, error) {
	v, flt := h.vm.mem.loadWord(addr, h.ring)
	if flt != nil {
		return 0, flt
	}
	return v, nil
}

func (h *HostContext) Store(addr, v Word) error {
	if flt := h.vm.mem.storeWord(addr, v, h.ring); flt != nil {
		return flt
	}
	return nil
}

// Install registers a handler under a syscall number. Installing over an
// existing number replaces it.
func (vm *VM) Install(num Word, sc Syscall) {
	vm.syscalls[num] = sc
}

// dispatchSyscall implements the trap: number in R1, arguments in R2-R5,
// return value written back to R1. Ring-0 handlers run with the region
// policy relaxed; the relaxation is scoped to the one call and released
// on every exit path.
func (vm *VM) dispatchSyscall(instrPC Word) *Fault {
	num := vm.regs.read(1)

	sc, ok := vm.syscalls[num]
	if !ok {
		return &Fault{Kind: UnknownSyscall, PC: instrPC, Num: num}
	}
	if sc.MinRing < vm.regs.ring {
		return &Fault{Kind: PrivilegeViolation, PC: instrPC, Num: num, Ring: vm.regs.ring}
	}

	if sc.MinRing == RingKernel {
		vm.mem.unlock()
		defer vm.mem.lock()
	}

	ret, err := sc.Fn(&HostContext{vm: vm, ring: sc.MinRing})
	if err != nil {
		vm.hostErr = err
		return nil
	}

	vm.regs.write(1, ret)
	return nil
}

// Syscall numbers of the illustrative host catalogue. The dispatch and
// ring rules above are the whole core contract; this catalogue is just
// the set of services the CLI wires up.
const (
	SysPutc   Word = 0x01 // ring 2: write low byte of R2 to the console
	SysGetc   Word = 0x02 // ring 2: read one byte, returned in R1
	SysCycles Word = 0x03 // ring 2: low 16 bits of the cycle counter
	SysBlit   Word = 0x10 // ring 1: copy R3 words from R2 to R4
	SysFill   Word = 0x11 // ring 1: fill R3 words at R2 with R4
	SysPeek   Word = 0x20 // ring 0: read any cell, reserved included
	SysPoke   Word = 0x21 // ring 0: write any cell, code included
	SysSave   Word = 0x22 // ring 0: save a machine snapshot host-side
	SysLoad   Word = 0x23 // ring 0: restore the saved snapshot
	SysRing   Word = 0x30 // ring 2: CPL becomes R2 (game-world escalation)
)

// InstallDefaultSyscalls wires the illustrative catalogue onto the vm.
// Console traffic goes through the given reader/writer.
func (vm *VM) InstallDefaultSyscalls(in io.Reader, out io.Writer) {
	stdin := bufio.NewReader(in)
	stdout := bufio.NewWriter(out)

	var saved *Snapshot

	vm.Install(SysPutc, Syscall{"putc", RingUser, func(h *HostContext) (Word, error) {
		if err := stdout.WriteByte(byte(h.Reg(2))); err != nil {
			return 0, err
		}
		return h.Reg(2), stdout.Flush()
	}})

	vm.Install(SysGetc, Syscall{"getc", RingUser, func(h *HostContext) (Word, error) {
		b, err := stdin.ReadByte()
		if err != nil {
			return 0, err
		}
		return Word(b), nil
	}})

	vm.Install(SysCycles, Syscall{"cycles", RingUser, func(h *HostContext) (Word, error) {
		return Word(h.Cycles()), nil
	}})

	vm.Install(SysBlit, Syscall{"blit", RingSupervisor, func(h *HostContext) (Word, error) {
		src, n, dst := h.Reg(2), h.Reg(3), h.Reg(4)
		for i := Word(0); i < n; i++ {
			v, err := h.Load(src + i)
			if err != nil {
				return 0, err
			}
			if err := h.Store(dst+i, v); err != nil {
				return 0, err
			}
		}
		return n, nil
	}})

	vm.Install(SysFill, Syscall{"fill", RingSupervisor, func(h *HostContext) (Word, error) {
		dst, n, v := h.Reg(2), h.Reg(3), h.Reg(4)
		for i := Word(0); i < n; i++ {
			if err := h.Store(dst+i, v); err != nil {
				return 0, err
			}
		}
		return n, nil
	}})

	vm.Install(SysPeek, Syscall{"peek", RingKernel, func(h *HostContext) (Word, error) {
		return h.Load(h.Reg(2))
	}})

	vm.Install(SysPoke, Syscall{"poke", RingKernel, func(h *HostContext) (Word, error) {
		return h.Reg(3), h.Store(h.Reg(2), h.Reg(3))
	}})

	vm.Install(SysSave, Syscall{"save", RingKernel, func(h *HostContext) (Word, error) {
		s := h.vm.Snapshot()
		saved = &s
		return 1, nil
	}})

	vm.Install(SysLoad, Syscall{"load", RingKernel, func(h *HostContext) (Word, error) {
		if saved == nil {
			return 0, nil
		}
		h.vm.Restore(*saved)
		return 1, nil
	}})

	vm.Install(SysRing, Syscall{"setring", RingUser, func(h *HostContext) (Word, error) {
		h.SetRing(Ring(h.Reg(2)))
		return Word(h.Ring()), nil
	}})
}
