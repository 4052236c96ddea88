package compiler

import (
	"fmt"

	"github.com/smoynes/poke/internal/ast"
	"github.com/smoynes/poke/internal/pvm"
)

// pvmType reifies a compile-time ast.Type as a runtime pvm.Type value (spec §3.1
// "Type: a first-class type reifier"). Most of the gen pass's type-bearing
// instructions (mka, mksct, mkoq, ...) need the corresponding pvm.Type already on the
// stack; rather than re-deriving it from mkit/mkat/mkst sequences at every use site,
// the compiler builds it once here and embeds it as a push literal, the same way a
// literal integer or string is embedded (spec §4.5 "append_val_parameter").
//
// The well-known Exception struct type (spec §4.6, §9 "wire-fixed... must not
// reorder") is special-cased: a StructLit naming "Exception" always resolves to
// rt.ExceptionType(), never to a locally-declared zero-field placeholder, since the
// parser's lowering stage (internal/parser/lower.go structLit) cannot itself see the
// runtime-library declaration.
func pvmType(rt *pvm.Runtime, t *ast.Type) (*pvm.Type, error) {
	if t == nil {
		return rt.VoidType(), nil
	}

	switch t.Kind {
	case ast.TVoid:
		return rt.VoidType(), nil
	case ast.TAny:
		return rt.AnyType(), nil
	case ast.TString:
		return rt.StringType(), nil
	case ast.TIntegral:
		return rt.IntegralType(t.IntSize, t.IntSigned), nil
	case ast.TOffset:
		base, err := pvmType(rt, t.Base)
		if err != nil {
			return nil, err
		}
		return pvm.NewOffsetType(rt, base, t.Unit), nil
	case ast.TArray:
		et, err := pvmType(rt, t.ElemType)
		if err != nil {
			return nil, err
		}
		var bound pvm.Value
		if lit, ok := t.Bound.(*ast.Integer); ok {
			bound = pvm.MakeIntegral(rt, lit.Size, lit.Signed, lit.Value)
		}
		return pvm.NewArrayType(rt, et, bound), nil
	case ast.TStruct:
		if t.Name == ast.ExceptionTypeName {
			return rt.ExceptionType(), nil
		}
		fields := make([]pvm.StructTypeField, 0, len(t.Fields))
		for _, f := range t.Fields {
			ft, err := pvmType(rt, f.Type)
			if err != nil {
				return nil, err
			}
			fields = append(fields, pvm.StructTypeField{
				Name: f.Name, Type: ft, Constraint: f.Constraint != nil,
			})
		}
		return pvm.NewStructType(rt, t.Name, fields, t.Union, t.Pinned), nil
	case ast.TFunction:
		ret, err := pvmType(rt, t.Ret)
		if err != nil {
			return nil, err
		}
		args := make([]*pvm.Type, 0, len(t.Args))
		for _, a := range t.Args {
			at, err := pvmType(rt, a.Type)
			if err != nil {
				return nil, err
			}
			args = append(args, at)
		}
		return pvm.NewFunctionType(rt, ret, args), nil
	default:
		return nil, fmt.Errorf("compiler: pvmType: unsupported type kind %v", t.Kind)
	}
}
