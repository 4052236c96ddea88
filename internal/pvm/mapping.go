package pvm

import "fmt"

// ReadMapped constructs a Value of type t by reading its backing bits out of space at
// offset, recursing through Array and Struct element/field types (spec §4.1 "mapped
// values ... read directly from the space's bytes"). Like opWrite's structural
// simplification, this performs the read directly rather than compiling and invoking a
// per-type reader closure (spec's "reader closures" are a runtime-library concern this
// translation does not compile from Poke source).
func ReadMapped(rt *Runtime, space IOSpace, iosID int32, t *Type, offset uint64, endian Endian) (Value, error) {
	switch t.kind {
	case TypeIntegral:
		raw, err := space.ReadBits(offset, uint(t.intSize), endian)
		if err != nil {
			return nil, err
		}
		return MakeIntegral(rt, t.intSize, t.intSigned, raw), nil

	case TypeOffset:
		mag, err := ReadMapped(rt, space, iosID, t.obase, offset, endian)
		if err != nil {
			return nil, err
		}
		return NewOffset(rt, mag, t.ounit), nil

	case TypeArray:
		n, hasBound := arrayMapLen(rt, t)
		a := NewArray(rt, t.etype, 0)
		var off uint64
		for i := 0; hasBound && i < n; i++ {
			esz, ok := SizeofType(rt, t.etype)
			if !ok {
				return nil, fmt.Errorf("pvm: mapping: element type has no static size")
			}
			ev, err := ReadMapped(rt, space, iosID, t.etype, offset+off, endian)
			if err != nil {
				return nil, err
			}
			a.elems = append(a.elems, arrayElem{value: ev, offset: off})
			off += esz
		}
		a.mapped = true
		a.ios = iosID
		a.offset = offset
		return a, nil

	case TypeStruct:
		names := make([]string, 0, len(t.structInfo.fields))
		values := make([]Value, 0, len(t.structInfo.fields))
		var off uint64
		for _, f := range t.structInfo.fields {
			fv, err := ReadMapped(rt, space, iosID, f.ftype, offset+off, endian)
			if err != nil {
				return nil, err
			}
			names = append(names, f.name)
			values = append(values, fv)
			sz, _ := SizeofType(rt, f.ftype)
			if !t.structInfo.pinned {
				off += sz
			}
		}
		s := NewStruct(rt, t, names, values, nil)
		s.ios = iosID
		s.offset = offset
		return s, nil

	default:
		return nil, fmt.Errorf("pvm: mapping: type %s is not mappable", t)
	}
}

// arrayMapLen resolves an array type's element count for mapping: a literal element
// count bound directly, or a byte-size bound divided by the element's static size.
func arrayMapLen(rt *Runtime, t *Type) (int, bool) {
	if t.bound == nil {
		return 0, false
	}
	esz, ok := SizeofType(rt, t.etype)
	if !ok || esz == 0 {
		return 0, false
	}
	if o, isOffset := t.bound.(*Offset); isOffset {
		return int(o.magnitudeBits(rt) / esz), true
	}
	raw, _, _, ok := IntegerBits(t.bound)
	if !ok {
		return 0, false
	}
	return int(raw), true
}
