package cvere

// TraceRecord describes one completed step. Records are delivered in
// program order, each before the next step begins.
type TraceRecord struct {
	Cycle uint64 // cycle counter after the step
	PC    Word   // address the instruction was fetched from
	Word  Word   // raw instruction word
	Instr Instruction
	SR    Word // status register after the step
}

// Run steps until halt, a fault, or maxCycles completed instructions.
// It returns the cycles consumed by this call; a nil error means the
// machine halted. Exhausting the budget comes back as a resumable
// CycleBudgetExhausted fault: calling Run again continues from the
// current PC.
func (vm *VM) Run(maxCycles uint64) (uint64, error) {
	return vm.Trace(maxCycles, nil)
}

// Trace is Run with an observer: one record per completed step. A nil
// sink makes it identical to Run. Faulting steps do not produce records
// because they do not complete.
func (vm *VM) Trace(maxCycles uint64, sink func(TraceRecord)) (uint64, error) {
	if vm.halted {
		// running a halted machine consumes nothing
		return 0, nil
	}

	for n := uint64(0); n < maxCycles; n++ {
		pc := vm.regs.pc

		res, err := vm.Step()
		if err != nil {
			return n, err
		}

		if sink != nil {
			w := vm.mem.cells[pc]
			sink(TraceRecord{
				Cycle: vm.cycles,
				PC:    pc,
				Word:  w,
				Instr: Decode(w),
				SR:    vm.regs.sr,
			})
		}

		if res == Halted {
			return n + 1, nil
		}
	}

	return maxCycles, &Fault{Kind: CycleBudgetExhausted, PC: vm.regs.pc}
}
