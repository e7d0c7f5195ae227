package cvere

// StepResult reports how a successful step left the machine.
type StepResult uint8

const (
	Continue StepResult = iota
	Halted
)

const signBit = Word(0x8000)

// Step executes exactly one instruction: fetch at PC, advance PC, decode,
// execute, write back, update flags. On return PC points at the next
// instruction to fetch (PC+1, or the branch target). A *Fault error is
// latched, so the vm stays inspectable but will not execute past it. An
// error returned by a syscall handler is passed through as-is and is not
// latched.
func (vm *VM) Step() (StepResult, error) {
	if vm.fault != nil {
		return Continue, vm.fault
	}
	if vm.halted {
		return Halted, nil
	}

	instrPC := vm.regs.pc
	w, flt := vm.mem.fetchInstruction(instrPC, vm.regs.ring)
	if flt != nil {
		flt.PC = instrPC
		vm.fault = flt
		return Continue, flt
	}

	vm.regs.pc++

	in := Decode(w)
	switch in.Fmt {
	case FormatHalt:
		vm.halted = true
		vm.cycles++
		return Halted, nil

	case FormatIllegal:
		// architectural state is untouched beyond the advanced pc
		flt := &Fault{Kind: IllegalInstruction, PC: instrPC}
		vm.fault = flt
		return Continue, flt

	case FormatR:
		vm.execALU(in)

	case FormatI:
		switch in.Op {
		case OpAddi:
			vm.execAddImm(in)
		case OpLoadi:
			v := Word(in.Imm)
			vm.regs.write(in.Rd, v)
			vm.regs.setFlags(v == 0, false, false, false)
		}

	case FormatM:
		addr := vm.regs.read(in.Rs) + Word(int16(in.Off))
		switch in.Op {
		case OpLoad:
			v, flt := vm.mem.loadWord(addr, vm.regs.ring)
			if flt != nil {
				flt.PC = instrPC
				vm.fault = flt
				return Continue, flt
			}
			vm.regs.write(in.Rd, v)
		case OpStore:
			if flt := vm.mem.storeWord(addr, vm.regs.read(in.Rd), vm.regs.ring); flt != nil {
				flt.PC = instrPC
				vm.fault = flt
				return Continue, flt
			}
		}

	case FormatControl:
		taken := true
		switch in.Op {
		case OpBeq:
			taken = vm.regs.read(in.Rd) == 0
		case OpBne:
			taken = vm.regs.read(in.Rd) != 0
		}
		if taken {
			// pc already points past the instruction, so the target is
			// instruction address + 1 + offset
			vm.regs.pc += Word(int16(in.Off))
		}

	case FormatSyscall:
		if flt := vm.dispatchSyscall(instrPC); flt != nil {
			vm.fault = flt
			return Continue, flt
		}
		if vm.hostErr != nil {
			// a handler failure stops the run but is not an
			// architectural fault; it is cleared here, so the next
			// step runs the instruction after the syscall
			err := vm.hostErr
			vm.hostErr = nil
			return Continue, err
		}
	}

	vm.cycles++
	return Continue, nil
}

// execALU runs the R-type ops and applies the flag rules
func (vm *VM) execALU(in Instruction) {
	rs, rt := vm.regs.read(in.Rs), vm.regs.read(in.Rt)

	var res Word
	carry, ovf := false, false

	switch in.Op {
	case OpAdd:
		res = rs + rt
		carry = uint32(rs)+uint32(rt) > 0xFFFF
		ovf = (rs^rt)&signBit == 0 && (rs^res)&signBit != 0
	case OpSub:
		res = rs - rt
		carry = rs < rt // borrow
		ovf = (rs^rt)&signBit != 0 && (rs^res)&signBit != 0
	case OpAnd:
		res = rs & rt
	case OpOr:
		res = rs | rt
	case OpXor:
		res = rs ^ rt
	case OpNot:
		res = ^rs
	case OpShl:
		if rt < 16 {
			res = rs << rt
		}
	case OpShr:
		// logical shift; amounts of 16 or more clear the result
		if rt < 16 {
			res = rs >> rt
		}
	}

	vm.regs.write(in.Rd, res)
	vm.regs.setFlags(res == 0, res&signBit != 0, carry, ovf)
}

// execAddImm is addi: rd += zero-extended immediate, arithmetic flags
func (vm *VM) execAddImm(in Instruction) {
	rd, imm := vm.regs.read(in.Rd), Word(in.Imm)
	res := rd + imm
	carry := uint32(rd)+uint32(imm) > 0xFFFF
	ovf := (rd^imm)&signBit == 0 && (rd^res)&signBit != 0

	vm.regs.write(in.Rd, res)
	vm.regs.setFlags(res == 0, res&signBit != 0, carry, ovf)
}
