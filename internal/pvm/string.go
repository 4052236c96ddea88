package pvm

import "strconv"

// String is a byte sequence, conventionally null-terminated at rest (spec §3.1). The
// Go representation drops the explicit terminator; SizeOf adds it back synthetically,
// matching the "(len+1)*8" rule (spec §4.1 size_of).
type String struct {
	gcHeader
	s string
}

func (s *String) Kind() Kind { return KindString }

// NewString allocates a String value.
func NewString(rt *Runtime, s string) *String {
	v := &String{s: s}
	rt.gc.register(v)
	return v
}

// GoString returns the underlying Go string.
func (s *String) GoString() string { return s.s }

func (s *String) String() string { return strconv.Quote(s.s) }
