package pvm

import (
	"fmt"
	"strings"
)

// structField holds one field slot of a Struct value (spec §3.1 "Struct fields"). A
// field whose name is "" and value is nil represents an *absent* field: the slot
// exists (e.g. for a union struct with another member currently selected) but is not
// counted by Elemsof/size_of.
type structField struct {
	name     string
	value    Value
	offset   uint64 // bit-offset relative to the struct's own offset.
	modified bool   // written since mapping.
	backup   *fieldBackup
}

type fieldBackup struct {
	value  Value
	offset uint64
}

// structMethod is a named closure attached to a struct's class table (spec §3.1
// "plus named methods").
type structMethod struct {
	name    string
	closure *Closure
}

// Struct is an ordered collection of named fields plus named methods (spec §3.1).
type Struct struct {
	gcHeader

	styp    *Type
	fields  []structField
	methods []structMethod

	mapped bool
	strict bool
	ios    int32
	offset uint64

	mapper *Closure
	writer *Closure

	backup *mappingBackup
}

func (s *Struct) Kind() Kind { return KindStruct }

// NewStruct constructs an unmapped Struct of the given type with the given fields (in
// declared order) and methods.
func NewStruct(rt *Runtime, styp *Type, fieldNames []string, fieldValues []Value, methods map[string]*Closure) *Struct {
	st := &Struct{styp: styp}

	var offset uint64
	for i, name := range fieldNames {
		v := fieldValues[i]
		sz := asULong(SizeOf(rt, v))
		st.fields = append(st.fields, structField{name: name, value: v, offset: offset})
		offset += sz
	}

	for name, c := range methods {
		st.methods = append(st.methods, structMethod{name: name, closure: c})
	}

	rt.gc.register(st)

	return st
}

// FieldByName returns the named field's value and whether it is present.
func (s *Struct) FieldByName(name string) (Value, bool) {
	for _, f := range s.fields {
		if f.name == name && !(f.name == "" && f.value == nil) {
			return f.value, true
		}
	}
	return NullValue, false
}

// SetFieldByName writes a field's value transactionally: the prior value and offset
// are snapshotted so a caller can restore the old value with RestoreField, per the
// "Runtime mappings are transactional via reloc/ureloc backups" principle applied to
// field assignment (spec §7).
func (s *Struct) SetFieldByName(name string, v Value) bool {
	for i := range s.fields {
		if s.fields[i].name == name {
			s.fields[i].backup = &fieldBackup{value: s.fields[i].value, offset: s.fields[i].offset}
			s.fields[i].value = v
			s.fields[i].modified = true
			return true
		}
	}
	return false
}

// RestoreField undoes the most recent SetFieldByName for name.
func (s *Struct) RestoreField(name string) {
	for i := range s.fields {
		if s.fields[i].name == name && s.fields[i].backup != nil {
			s.fields[i].value = s.fields[i].backup.value
			s.fields[i].offset = s.fields[i].backup.offset
			s.fields[i].backup = nil
			return
		}
	}
}

// NFields returns the count of present fields, as a ULong per spec's "A Struct's
// nfields and nmethods are ULong" invariant (spec §3.1).
func (s *Struct) NFields(rt *Runtime) Value {
	var n uint64
	for _, f := range s.fields {
		if !(f.name == "" && f.value == nil) {
			n++
		}
	}
	return MakeIntegral(rt, 64, false, n)
}

// NMethods returns the method count as a ULong.
func (s *Struct) NMethods(rt *Runtime) Value {
	return MakeIntegral(rt, 64, false, uint64(len(s.methods)))
}

// Method looks up a named method's closure.
func (s *Struct) Method(name string) (*Closure, bool) {
	for _, m := range s.methods {
		if m.name == name {
			return m.closure, true
		}
	}
	return nil, false
}

// ExceptionTypeName is the wire-fixed name of the Exception struct type (spec §4.6,
// §9 "Exception struct-type layout"). Its first five fields, in order, must be
// code:int<32>, name:string, exit_status:int<32>, location:string, msg:string.
const ExceptionTypeName = "Exception"

// NewExceptionType constructs the Exception struct type with its wire-fixed field
// layout. NewRuntime constructs this once and keeps it as the Runtime's ExceptionType.
func NewExceptionType(rt *Runtime) *Type {
	i32 := rt.IntegralType(32, true)
	str := rt.StringType()

	return NewStructType(rt, ExceptionTypeName, []StructTypeField{
		{Name: "code", Type: i32},
		{Name: "name", Type: str},
		{Name: "exit_status", Type: i32},
		{Name: "location", Type: str},
		{Name: "msg", Type: str},
	}, false, false)
}

// NewException constructs an Exception struct value with the given field values.
func NewException(rt *Runtime, code int32, name string, exitStatus int32, location, msg string) *Struct {
	return NewStruct(rt, rt.exceptionType,
		[]string{"code", "name", "exit_status", "location", "msg"},
		[]Value{
			MakeIntegral(rt, 32, true, uint64(uint32(code))),
			NewString(rt, name),
			MakeIntegral(rt, 32, true, uint64(uint32(exitStatus))),
			NewString(rt, location),
			NewString(rt, msg),
		},
		nil,
	)
}

func (s *Struct) String() string {
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		if f.name == "" && f.value == nil {
			continue
		}
		if f.name != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", f.name, f.value))
		} else {
			parts = append(parts, f.value.String())
		}
	}

	name := "struct"
	if s.styp != nil && s.styp.name != "" {
		name = s.styp.name
	}

	str := fmt.Sprintf("%s {%s}", name, strings.Join(parts, ","))
	if s.mapped {
		str += fmt.Sprintf("@%d#b", s.offset)
	}

	return str
}
