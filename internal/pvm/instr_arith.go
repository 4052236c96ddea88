package pvm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// arithmeticOps builds the generic arithmetic, comparison and bitwise instructions on
// Int/UInt/Long/ULong/String (spec §4.6 "Arithmetic and comparison on Int/UInt/Long/
// ULong/String, with explicit overflow-checked variants"). By the time code generation
// emits one of these, the typify/promo passes (spec §4.9) have already inserted the
// casts that bring both operands to a common size and signedness, so every op here
// assumes its two popped operands already agree and simply mirrors that width into the
// result.
func arithmeticOps() map[string]opFunc {
	return map[string]opFunc{
		"addi": binIntOp(func(a, b int64) int64 { return a + b }, func(a, b uint64) uint64 { return a + b }),
		"subi": binIntOp(func(a, b int64) int64 { return a - b }, func(a, b uint64) uint64 { return a - b }),
		"muli": binIntOp(func(a, b int64) int64 { return a * b }, func(a, b uint64) uint64 { return a * b }),

		"divi": divOp(false),
		"cdivi": divOp(true), // ceiling division, per spec §4.6 macro family "cdiv, cdivo".
		"modi": modOp(),

		"addiof": overflowOp("addiof", func(a, b *uint256.Int) *uint256.Int { return new(uint256.Int).Add(a, b) }),
		"subiof": overflowOp("subiof", func(a, b *uint256.Int) *uint256.Int { return new(uint256.Int).Sub(a, b) }),
		"muliof": overflowOp("muliof", func(a, b *uint256.Int) *uint256.Int { return new(uint256.Int).Mul(a, b) }),
		"powiof": overflowOp("powiof", func(a, b *uint256.Int) *uint256.Int { return new(uint256.Int).Exp(a, b) }),

		"negi": unaryIntOp(func(a int64) int64 { return -a }, func(a uint64) uint64 { return -a }),

		"bandi": binRawOp(func(a, b uint64) uint64 { return a & b }),
		"bori":  binRawOp(func(a, b uint64) uint64 { return a | b }),
		"bxori": binRawOp(func(a, b uint64) uint64 { return a ^ b }),
		"bnoti": unaryRawOp(func(a uint64) uint64 { return ^a }),
		"bshli": binRawOp(func(a, b uint64) uint64 { return a << b }),
		"bshri": binRawOp(func(a, b uint64) uint64 { return a >> b }),

		"eqi": cmpOp(func(c int) bool { return c == 0 }),
		"nei": cmpOp(func(c int) bool { return c != 0 }),
		"lti": cmpOp(func(c int) bool { return c < 0 }),
		"gti": cmpOp(func(c int) bool { return c > 0 }),
		"lei": cmpOp(func(c int) bool { return c <= 0 }),
		"gei": cmpOp(func(c int) bool { return c >= 0 }),

		"adds": opAdds,
		"eqs":  opEqs,
		"nes":  opNes,
		"lts":  opLts,

		"casti": opCasti,
	}
}

// opCasti narrows or widens an Int/UInt/Long/ULong to the size and signedness carried
// as its two unsigned parameters (spec §4.7 "cast: ... an integral type to another
// integral type"). Unlike addi/subi/etc, which mirror an operand's own width into the
// result, this is the one instruction whose result width is a compile-time constant,
// since it's precisely what a typify-inserted ast.Cast needs.
func opCasti(vm *VM, insn Instruction) error {
	if len(insn.Params) != 2 {
		return fmt.Errorf("pvm: casti: bad operands")
	}
	size := uint8(insn.Params[0].ID)
	signed := insn.Params[1].ID != 0

	v, err := vm.Pop()
	if err != nil {
		return err
	}
	raw, _, _, ok := IntegerBits(v)
	if !ok {
		return fmt.Errorf("pvm: casti: operand is not integral")
	}

	vm.Push(MakeIntegral(vm.rt, size, signed, raw))

	return nil
}

func popTwoInts(vm *VM) (a, b Value, err error) {
	b, err = vm.Pop()
	if err != nil {
		return nil, nil, err
	}
	a, err = vm.Pop()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// binIntOp builds a binary arithmetic instruction that dispatches on signedness.
// Overflow silently wraps (two's complement), matching the non-overflow-checked
// opcode family; the *iof variants below raise E_overflow instead.
func binIntOp(signedFn func(a, b int64) int64, unsignedFn func(a, b uint64) uint64) opFunc {
	return func(vm *VM, insn Instruction) error {
		a, b, err := popTwoInts(vm)
		if err != nil {
			return err
		}

		araw, asize, asigned, aok := IntegerBits(a)
		_, _, _, bok := IntegerBits(b)
		if !aok || !bok {
			return fmt.Errorf("pvm: arithmetic operand is not integral")
		}
		braw, _, _, _ := IntegerBits(b)

		if asigned {
			shift := 64 - asize
			ai := int64(araw<<shift) >> shift
			bi := int64(braw<<shift) >> shift
			vm.Push(MakeIntegral(vm.rt, asize, true, uint64(signedFn(ai, bi))))
		} else {
			vm.Push(MakeIntegral(vm.rt, asize, false, unsignedFn(araw, braw)))
		}

		return nil
	}
}

func unaryIntOp(signedFn func(a int64) int64, unsignedFn func(a uint64) uint64) opFunc {
	return func(vm *VM, insn Instruction) error {
		a, err := vm.Pop()
		if err != nil {
			return err
		}
		raw, size, signed, ok := IntegerBits(a)
		if !ok {
			return fmt.Errorf("pvm: arithmetic operand is not integral")
		}
		if signed {
			shift := 64 - size
			ai := int64(raw<<shift) >> shift
			vm.Push(MakeIntegral(vm.rt, size, true, uint64(signedFn(ai))))
		} else {
			vm.Push(MakeIntegral(vm.rt, size, false, unsignedFn(raw)))
		}
		return nil
	}
}

func binRawOp(fn func(a, b uint64) uint64) opFunc {
	return func(vm *VM, insn Instruction) error {
		a, b, err := popTwoInts(vm)
		if err != nil {
			return err
		}
		araw, asize, asigned, aok := IntegerBits(a)
		braw, _, _, bok := IntegerBits(b)
		if !aok || !bok {
			return fmt.Errorf("pvm: bitwise operand is not integral")
		}
		vm.Push(MakeIntegral(vm.rt, asize, asigned, fn(araw, braw)))
		return nil
	}
}

func unaryRawOp(fn func(a uint64) uint64) opFunc {
	return func(vm *VM, insn Instruction) error {
		a, err := vm.Pop()
		if err != nil {
			return err
		}
		raw, size, signed, ok := IntegerBits(a)
		if !ok {
			return fmt.Errorf("pvm: bitwise operand is not integral")
		}
		vm.Push(MakeIntegral(vm.rt, size, signed, fn(raw)))
		return nil
	}
}

// divOp builds the `divi`/`cdivi` division instructions. Division by zero raises
// E_div_by_zero (spec §7 error table "Runtime exception"); ceil controls whether the
// quotient rounds toward zero (divi) or up, toward positive infinity, on a non-exact
// division (cdivi, spec §4.6 "cdiv, cdivo").
func divOp(ceil bool) opFunc {
	return func(vm *VM, insn Instruction) error {
		a, b, err := popTwoInts(vm)
		if err != nil {
			return err
		}
		araw, asize, asigned, aok := IntegerBits(a)
		braw, _, _, bok := IntegerBits(b)
		if !aok || !bok {
			return fmt.Errorf("pvm: divi: operand is not integral")
		}

		if asigned {
			shift := 64 - asize
			ai := int64(araw<<shift) >> shift
			bi := int64(braw<<shift) >> shift
			if bi == 0 {
				return raiseErr(NewException(vm.rt, EDivByZero, "E_div_by_zero", 1, "", "division by zero"))
			}
			q := ai / bi
			if ceil && ai%bi != 0 && (ai < 0) == (bi < 0) {
				q++
			}
			vm.Push(MakeIntegral(vm.rt, asize, true, uint64(q)))
		} else {
			bu := braw & mask64(asize)
			if bu == 0 {
				return raiseErr(NewException(vm.rt, EDivByZero, "E_div_by_zero", 1, "", "division by zero"))
			}
			au := araw & mask64(asize)
			q := au / bu
			if ceil && au%bu != 0 {
				q++
			}
			vm.Push(MakeIntegral(vm.rt, asize, false, q))
		}

		return nil
	}
}

func modOp() opFunc {
	return func(vm *VM, insn Instruction) error {
		a, b, err := popTwoInts(vm)
		if err != nil {
			return err
		}
		araw, asize, asigned, aok := IntegerBits(a)
		braw, _, _, bok := IntegerBits(b)
		if !aok || !bok {
			return fmt.Errorf("pvm: modi: operand is not integral")
		}

		if asigned {
			shift := 64 - asize
			ai := int64(araw<<shift) >> shift
			bi := int64(braw<<shift) >> shift
			if bi == 0 {
				return raiseErr(NewException(vm.rt, EDivByZero, "E_div_by_zero", 1, "", "division by zero"))
			}
			vm.Push(MakeIntegral(vm.rt, asize, true, uint64(ai%bi)))
		} else {
			bu := braw & mask64(asize)
			if bu == 0 {
				return raiseErr(NewException(vm.rt, EDivByZero, "E_div_by_zero", 1, "", "division by zero"))
			}
			vm.Push(MakeIntegral(vm.rt, asize, false, (araw&mask64(asize))%bu))
		}

		return nil
	}
}

// overflowOp builds an overflow-checked arithmetic instruction (addiof, subiof,
// muliof, powiof): the operation is computed in 256-bit precision via uint256 and
// compared against the narrow result, raising E_overflow if they disagree
// (spec §4.6 "on overflow, raise E_overflow").
func overflowOp(name string, fn func(a, b *uint256.Int) *uint256.Int) opFunc {
	return func(vm *VM, insn Instruction) error {
		a, b, err := popTwoInts(vm)
		if err != nil {
			return err
		}
		araw, asize, asigned, aok := IntegerBits(a)
		braw, _, _, bok := IntegerBits(b)
		if !aok || !bok {
			return fmt.Errorf("pvm: %s: operand is not integral", name)
		}

		abig := bigFromRaw(araw, asize, asigned)
		bbig := bigFromRaw(braw, asize, asigned)
		result := fn(abig, bbig)

		narrow := MakeIntegral(vm.rt, asize, asigned, result.Uint64())
		back := bigFromRaw(asULong(narrow), asize, asigned)
		if back.Cmp(result) != 0 {
			return raiseErr(NewOverflowException(vm.rt, name))
		}

		vm.Push(narrow)

		return nil
	}
}

func bigFromRaw(raw uint64, size uint8, signed bool) *uint256.Int {
	if signed {
		shift := 64 - size
		i := int64(raw<<shift) >> shift
		n := new(uint256.Int)
		if i < 0 {
			n.SetUint64(uint64(-i))
			return new(uint256.Int).Neg(n)
		}
		n.SetUint64(uint64(i))
		return n
	}
	return new(uint256.Int).SetUint64(raw & mask64(size))
}

// cmpOp builds a comparison instruction returning an int<32> boolean (0 or 1), the
// Poke convention for truth values (spec §4.6 "Arithmetic and comparison").
func cmpOp(accept func(c int) bool) opFunc {
	return func(vm *VM, insn Instruction) error {
		a, b, err := popTwoInts(vm)
		if err != nil {
			return err
		}

		if sa, aok := a.(*String); aok {
			sb, bok := b.(*String)
			if !bok {
				return fmt.Errorf("pvm: comparison operand mismatch")
			}
			vm.Push(boolValue(vm.rt, accept(stringsCompare(sa.s, sb.s))))
			return nil
		}

		araw, asize, asigned, aok := IntegerBits(a)
		braw, _, _, bok := IntegerBits(b)
		if !aok || !bok {
			return fmt.Errorf("pvm: comparison operand is not integral")
		}

		var c int
		if asigned {
			shift := 64 - asize
			ai := int64(araw<<shift) >> shift
			bi := int64(braw<<shift) >> shift
			switch {
			case ai < bi:
				c = -1
			case ai > bi:
				c = 1
			}
		} else {
			au := araw & mask64(asize)
			bu := braw & mask64(asize)
			switch {
			case au < bu:
				c = -1
			case au > bu:
				c = 1
			}
		}

		vm.Push(boolValue(vm.rt, accept(c)))

		return nil
	}
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func opAdds(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	as, aok := a.(*String)
	bs, bok := b.(*String)
	if !aok || !bok {
		return fmt.Errorf("pvm: adds: operands must be strings")
	}
	vm.Push(NewString(vm.rt, as.s+bs.s))
	return nil
}

func opEqs(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	vm.Push(boolValue(vm.rt, Equal(vm.rt, a, b)))
	return nil
}

func opNes(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	vm.Push(boolValue(vm.rt, !Equal(vm.rt, a, b)))
	return nil
}

func opLts(vm *VM, insn Instruction) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	as, aok := a.(*String)
	bs, bok := b.(*String)
	if !aok || !bok {
		return fmt.Errorf("pvm: lts: operands must be strings")
	}
	vm.Push(boolValue(vm.rt, as.s < bs.s))
	return nil
}
