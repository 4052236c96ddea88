package pvm

import (
	"fmt"

	"github.com/dsnet/golib/unitconv"
)

// Well-known offset units (spec §3.1 "Offset semantics"): bits-per-unit.
const (
	UnitBits        uint64 = 1
	UnitNibbles      uint64 = 4
	UnitBytes        uint64 = 8
	UnitKilobits     uint64 = 1000
	UnitKibibits     uint64 = 1024
	UnitMegabits     uint64 = 1000 * 1000
	UnitMebibits     uint64 = 1024 * 1024
	UnitGigabits     uint64 = 1000 * 1000 * 1000
	UnitGibibits     uint64 = 1024 * 1024 * 1024
	UnitKilobytes    uint64 = UnitKilobits * UnitBytes
	UnitKibibytes    uint64 = UnitKibibits * UnitBytes
	UnitMegabytes    uint64 = UnitMegabits * UnitBytes
	UnitMebibytes    uint64 = UnitMebibits * UnitBytes
	UnitGigabytes    uint64 = UnitGigabits * UnitBytes
	UnitGibibytes    uint64 = UnitGibibits * UnitBytes
)

// Offset is a rational quantity of bits: a magnitude (an integral Value) and a unit
// (bits-per-unit, always > 0) (spec §3.1 "Offset semantics", GLOSSARY "Offset").
type Offset struct {
	gcHeader
	magnitude Value
	unit      uint64
	backup    *mappingBackup // unused by Offset itself; present for markValue symmetry.
}

func (o *Offset) Kind() Kind { return KindOffset }

// NewOffset constructs an Offset value. Per the invariant "For Offsets, the unit is a
// ULong(64) strictly greater than zero" (spec §3.1), a zero unit fails to NullValue
// (spec §8 "Offset with unit 0 must not construct; constructor returns Null").
func NewOffset(rt *Runtime, magnitude Value, unit uint64) Value {
	if unit == 0 {
		return NullValue
	}

	o := &Offset{magnitude: magnitude, unit: unit}
	rt.gc.register(o)

	return o
}

// magnitudeBits returns the offset's value translated into bits (magnitude * unit).
func (o *Offset) magnitudeBits(rt *Runtime) uint64 {
	raw, _, signed, _ := IntegerBits(o.magnitude)
	if signed {
		// sign-extend then reinterpret: offsets are conventionally non-negative but
		// the magnitude type is a signed or unsigned integral per the grammar.
		size := sizeOfRaw(o.magnitude)
		shift := 64 - size
		m := uint64(int64(raw<<shift) >> shift)
		return m * o.unit
	}
	return raw * o.unit
}

func sizeOfRaw(v Value) uint8 {
	_, size, _, _ := IntegerBits(v)
	return size
}

// normalizeBits returns (magnitudeBits) used by Equal: two offsets are equal iff their
// magnitude-in-bits match after promotion (spec §4.1 equal, "for offsets, magnitude and
// unit must compare equal after promotion").
func (o *Offset) normalizeBits(rt *Runtime) uint64 { return o.magnitudeBits(rt) }

// AddOffsets implements offset arithmetic promotion to bits and renormalization
// (spec §3.1 "Arithmetic on offsets promotes to bits and renormalises"). The result is
// expressed in bits (unit 1); callers (the `addo` macro) are responsible for converting
// back to the operands' original unit if the language surface requires it.
func AddOffsets(rt *Runtime, a, b *Offset) Value {
	bits := a.magnitudeBits(rt) + b.magnitudeBits(rt)
	return NewOffset(rt, MakeIntegral(rt, 64, false, bits), UnitBits)
}

func (o *Offset) String() string {
	mag := "?"
	if o.magnitude != nil {
		mag = o.magnitude.String()
	}

	if o.unit%UnitBytes == 0 && o.unit >= UnitBytes {
		// Large byte-multiple units render with an IEC/SI-style prefix, reusing the
		// same human-byte-count formatting the rest of the Go ecosystem uses for
		// file sizes, instead of a bespoke kilo/mega/giga switch.
		bytesPerUnit := o.unit / UnitBytes
		return fmt.Sprintf("%s#%s", mag, unitconv.FormatPrefix(unitconv.IEC, float64(bytesPerUnit), 'B'))
	}

	return fmt.Sprintf("%s#%d", mag, o.unit)
}
