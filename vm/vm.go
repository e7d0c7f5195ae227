package cvere

import (
	"fmt"
	"strings"
)

// VM owns the whole machine: memory, register file, cycle counter and
// the installed syscall table. A VM is exclusively owned by its caller;
// nothing here is safe for concurrent use.
type VM struct {
	mem      memory
	regs     registerFile
	cycles   uint64
	halted   bool
	fault    *Fault
	hostErr  error
	syscalls map[Word]Syscall
}

// NewVirtualMachine returns a machine in reset state: memory and
// registers zeroed, PC=0, SP=0xFFFE, ring 2. No syscalls are installed.
func NewVirtualMachine() *VM {
	vm := &VM{syscalls: make(map[Word]Syscall)}
	vm.regs.reset()
	return vm
}

// LoadProgram copies a word image into executable memory at base. The
// image must lie entirely inside an executable region.
func (vm *VM) LoadProgram(words []Word, base Word) error {
	end := int(base) + len(words)
	if end > int(regions[3].base) {
		return fmt.Errorf("program of %d words at 0x%04x does not fit below 0x%04x", len(words), base, regions[3].base)
	}
	for addr := int(base); addr < end; addr++ {
		if regionAt(Word(addr)).access&accessExec == 0 {
			return fmt.Errorf("program of %d words at 0x%04x spills out of executable memory", len(words), base)
		}
	}

	return vm.mem.loadImage(words, base)
}

// LoadData copies a word image into memory without requiring execute
// permission; bounds and the reserved region still apply.
func (vm *VM) LoadData(words []Word, base Word) error {
	return vm.mem.loadImage(words, base)
}

// Register and machine-state accessors for embedders, tests and the
// monitor.

func (vm *VM) Reg(i uint8) Word    { return vm.regs.read(i) }
func (vm *VM) PC() Word            { return vm.regs.pc }
func (vm *VM) SP() Word            { return vm.regs.sp }
func (vm *VM) LR() Word            { return vm.regs.lr }
func (vm *VM) Ring() Ring          { return vm.regs.ring }
func (vm *VM) Flag(f Flag) bool    { return vm.regs.flag(f) }
func (vm *VM) Cycles() uint64      { return vm.cycles }
func (vm *VM) IsHalted() bool      { return vm.halted }
func (vm *VM) Fault() *Fault       { return vm.fault }
func (vm *VM) Peek(addr Word) Word { return vm.mem.cells[addr] }

// Snapshot is the complete architectural state, sufficient to replay or
// diff two machines.
type Snapshot struct {
	GPR    [numRegisters]Word
	PC     Word
	SP     Word
	LR     Word
	SR     Word
	Ring   Ring
	Cycles uint64
	Halted bool
	Mem    [memWords]Word
}

// Snapshot copies out the architectural state
func (vm *VM) Snapshot() Snapshot {
	return Snapshot{
		GPR:    vm.regs.gpr,
		PC:     vm.regs.pc,
		SP:     vm.regs.sp,
		LR:     vm.regs.lr,
		SR:     vm.regs.sr,
		Ring:   vm.regs.ring,
		Cycles: vm.cycles,
		Halted: vm.halted,
		Mem:    vm.mem.cells,
	}
}

// Restore replaces the architectural state with a snapshot and clears
// any latched fault; the syscall table is untouched.
func (vm *VM) Restore(s Snapshot) {
	vm.regs.gpr = s.GPR
	vm.regs.gpr[0] = 0
	vm.regs.pc = s.PC
	vm.regs.sp = s.SP
	vm.regs.lr = s.LR
	vm.regs.sr = s.SR
	vm.regs.ring = s.Ring
	vm.cycles = s.Cycles
	vm.halted = s.Halted
	vm.mem.cells = s.Mem
	vm.fault = nil
}

// DumpState renders the registers and the next instruction for the
// monitor
func (vm *VM) DumpState() string {
	var b strings.Builder

	fmt.Fprintf(&b, "pc=0x%04x sp=0x%04x lr=0x%04x ring=%d cycles=%d", vm.regs.pc, vm.regs.sp, vm.regs.lr, vm.regs.ring, vm.cycles)
	fmt.Fprintf(&b, " [z=%d n=%d c=%d v=%d]\n", b2i(vm.Flag(FlagZ)), b2i(vm.Flag(FlagN)), b2i(vm.Flag(FlagC)), b2i(vm.Flag(FlagV)))

	for i := 0; i < numRegisters; i++ {
		if i > 0 && i%8 == 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "r%-2d=0x%04x ", i, vm.regs.read(uint8(i)))
	}
	b.WriteByte('\n')

	switch {
	case vm.fault != nil:
		fmt.Fprintf(&b, "faulted: %s\n", vm.fault)
	case vm.halted:
		b.WriteString("halted\n")
	default:
		fmt.Fprintf(&b, "next> 0x%04x: %s\n", vm.regs.pc, Decode(vm.mem.cells[vm.regs.pc]))
	}

	return b.String()
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
