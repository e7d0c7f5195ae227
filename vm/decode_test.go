package cvere

import "testing"

func TestDecodeTotal(t *testing.T) {
	// every 16-bit pattern decodes, and every non-illegal decoding
	// round-trips through the encoder bit-exactly
	for w := 0; w <= 0xFFFF; w++ {
		in := Decode(Word(w))
		if in.Fmt == FormatIllegal {
			continue
		}
		assert(t, Encode(in) == Word(w), "round trip broke at 0x%04x: %s", w, in)
	}
}

func TestDecodeFixedEncodings(t *testing.T) {
	// the authoritative encodings from the architecture reference
	cases := []struct {
		w   Word
		op  Opcode
		fmt Format
		rd  uint8
	}{
		{0xC105, OpLoadi, FormatI, 1},
		{0xC203, OpLoadi, FormatI, 2},
		{0x1312, OpAdd, FormatR, 3},
		{0x2101, OpAddi, FormatI, 1},
		{0xF3FD, OpBne, FormatControl, 3},
		{0xD0FF, OpJmp, FormatControl, 0},
		{0xFFFF, OpHalt, FormatHalt, 0},
	}

	for _, c := range cases {
		in := Decode(c.w)
		assert(t, in.Op == c.op, "0x%04x decoded to %s", c.w, in.Op)
		assert(t, in.Fmt == c.fmt, "0x%04x format = %d", c.w, in.Fmt)
		assert(t, in.Rd == c.rd, "0x%04x rd = %d", c.w, in.Rd)
	}

	in := Decode(0x1312)
	assert(t, in.Rs == 1 && in.Rt == 2, "r-type nibble order is rd|rs|rt")

	in = Decode(0xC105)
	assert(t, in.Imm == 0x05, "i-type immediate = %#x", in.Imm)

	in = Decode(0xF3FD)
	assert(t, in.Off == -3, "bne offset = %d", in.Off)

	in = Decode(0xD0FF)
	assert(t, in.Off == -1, "jmp offset = %d", in.Off)
}

func TestDecodeMTypeOffsets(t *testing.T) {
	// 4-bit offsets sign-extend: 0x7 is +7, 0x8 is -8, 0xF is -1
	in := Decode(0xA127)
	assert(t, in.Op == OpLoad && in.Rd == 1 && in.Rs == 2, "load fields wrong: %s", in)
	assert(t, in.Off == 7, "load offset = %d", in.Off)

	in = Decode(0xA128)
	assert(t, in.Off == -8, "load offset = %d", in.Off)

	in = Decode(0xB12F)
	assert(t, in.Op == OpStore && in.Off == -1, "store offset = %d", in.Off)
}

func TestHaltTieBreak(t *testing.T) {
	// 0xFFFF must be halt, never a bne with rd=15 off=-1
	in := Decode(0xFFFF)
	assert(t, in.Op == OpHalt, "0xffff decoded to %s", in.Op)

	// nearby bne encodings still decode as bne
	in = Decode(0xFFFE)
	assert(t, in.Op == OpBne && in.Rd == 15 && in.Off == -2, "0xfffe decoded to %s", in)
}
