// Package fuzz implements the property-based random-instruction-sequence
// generator from spec.md §8: draw instructions from the supported
// mnemonic subset, encode them to real x86-64 bytes, and hand the result
// to the rest of the pipeline so native and virtualized execution can be
// compared for equivalence (spec.md §8 property 6, excluding rip/rsp).
//
// The generator is driven by the RNG contract (internal/rng), never
// testing/quick, matching SPEC_FULL.md §5's test-tooling choice.
package fuzz

import "fmt"

// reg64 maps a GPR name to its 3-bit encoding plus the extended-register
// (REX.R/X/B) bit.
var reg64 = map[string]int{
	"rax": 0, "rcx": 1, "rdx": 2, "rbx": 3,
	"rsp": 4, "rbp": 5, "rsi": 6, "rdi": 7,
	"r8": 8, "r9": 9, "r10": 10, "r11": 11,
	"r12": 12, "r13": 13, "r14": 14, "r15": 15,
}

func regNum(name string) (int, error) {
	n, ok := reg64[name]
	if !ok {
		return 0, fmt.Errorf("fuzz: unknown register %q", name)
	}
	return n, nil
}

// rex builds a REX prefix. w selects 64-bit operand size; r/x/b are the
// high bits of the ModRM.reg, SIB.index, and ModRM.rm/SIB.base fields
// respectively.
func rex(w bool, r, x, b int) byte {
	var v byte = 0x40
	if w {
		v |= 0x08
	}
	if r&8 != 0 {
		v |= 0x04
	}
	if x&8 != 0 {
		v |= 0x02
	}
	if b&8 != 0 {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm int) byte {
	return byte(mod<<6 | (reg&7)<<3 | (rm & 7))
}

// encodeRR encodes the common "opcode /r" register-to-register form: REX.W
// + opcode + ModRM(11, reg, rm).
func encodeRR(opcode byte, reg, rm string) ([]byte, error) {
	rn, err := regNum(reg)
	if err != nil {
		return nil, err
	}
	mn, err := regNum(rm)
	if err != nil {
		return nil, err
	}
	return []byte{rex(true, rn, 0, mn), opcode, modrm(3, rn, mn)}, nil
}

// encodeExtRM encodes a "/digit" extended-opcode register form (e.g. INC,
// DEC, NEG, NOT): REX.W + opcode + ModRM(11, digit, rm).
func encodeExtRM(opcode byte, digit int, rm string) ([]byte, error) {
	mn, err := regNum(rm)
	if err != nil {
		return nil, err
	}
	return []byte{rex(true, 0, 0, mn), opcode, modrm(3, digit, mn)}, nil
}

// MOVImm64 encodes `mov dst, imm64`.
func MOVImm64(dst string, imm uint64) ([]byte, error) {
	dn, err := regNum(dst)
	if err != nil {
		return nil, err
	}
	out := []byte{rex(true, 0, 0, dn), 0xB8 + byte(dn&7)}
	for i := 0; i < 8; i++ {
		out = append(out, byte(imm>>(8*i)))
	}
	return out, nil
}

// ADD encodes `add dst, src` (ADD r/m64, r64).
func ADD(dst, src string) ([]byte, error) { return encodeRR(0x01, src, dst) }

// SUB encodes `sub dst, src` (SUB r/m64, r64).
func SUB(dst, src string) ([]byte, error) { return encodeRR(0x29, src, dst) }

// AND encodes `and dst, src` (AND r/m64, r64).
func AND(dst, src string) ([]byte, error) { return encodeRR(0x21, src, dst) }

// OR encodes `or dst, src` (OR r/m64, r64).
func OR(dst, src string) ([]byte, error) { return encodeRR(0x09, src, dst) }

// XOR encodes `xor dst, src` (XOR r/m64, r64).
func XOR(dst, src string) ([]byte, error) { return encodeRR(0x31, src, dst) }

// CMP encodes `cmp dst, src` (CMP r/m64, r64).
func CMP(dst, src string) ([]byte, error) { return encodeRR(0x39, src, dst) }

// INC encodes `inc dst` (0xFF /0).
func INC(dst string) ([]byte, error) { return encodeExtRM(0xFF, 0, dst) }

// DEC encodes `dec dst` (0xFF /1).
func DEC(dst string) ([]byte, error) { return encodeExtRM(0xFF, 1, dst) }

// NOT encodes `not dst` (0xF7 /2).
func NOT(dst string) ([]byte, error) { return encodeExtRM(0xF7, 2, dst) }

// NEG encodes `neg dst` (0xF7 /3).
func NEG(dst string) ([]byte, error) { return encodeExtRM(0xF7, 3, dst) }

// LEA encodes `lea dst, [base + index*scale + disp8]`, the addressing
// form spec.md §8's "LEA address math" scenario exercises. scale must be
// 1, 2, 4, or 8.
func LEA(dst, base, index string, scale int, disp int8) ([]byte, error) {
	dn, err := regNum(dst)
	if err != nil {
		return nil, err
	}
	bn, err := regNum(base)
	if err != nil {
		return nil, err
	}
	in, err := regNum(index)
	if err != nil {
		return nil, err
	}
	var ss int
	switch scale {
	case 1:
		ss = 0
	case 2:
		ss = 1
	case 4:
		ss = 2
	case 8:
		ss = 3
	default:
		return nil, fmt.Errorf("fuzz: invalid LEA scale %d", scale)
	}
	sib := byte(ss<<6 | (in&7)<<3 | (bn & 7))
	return []byte{
		rex(true, dn, in, bn),
		0x8D,
		modrm(1, dn, 4), // mod=01 (disp8), rm=100 selects SIB
		sib,
		byte(disp),
	}, nil
}

// RET encodes a bare `ret`, the SentinelTrap convention internal/harness
// expects every runnable program to end in.
func RET() []byte { return []byte{0xC3} }
