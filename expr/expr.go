// Package expr implements the expression thunks used for cross-field
// dependent attributes: field offset, length, count, condition, and switch
// specs can each be a constant, a reference to another field, or a small
// expression tree built from those.
package expr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/dstructerr"
)

// Facade is the view of the surrounding parse/emit state that a Spec is
// evaluated against. It plays the role Python's attribute-interception
// ParsingContext.F played, but as an explicit interface rather than
// transparent attribute access.
type Facade interface {
	// Get looks up the current value of a named field reachable from this
	// facade: a field of the current structure, or, only when that
	// structure's context is flat, of an enclosing one. Returns
	// dstructerr.FieldNotFound if no such field exists or it has no value yet.
	Get(name string) (interface{}, error)
	// Parent returns the facade for the structure directly enclosing this
	// one, or nil at the root.
	Parent() Facade
	// Root returns the outermost facade.
	Root() Facade
	// Context returns the arbitrary value handed in when parsing/emitting
	// started (Options.UserData in the structure package), for use by
	// user-supplied ThunkFuncs that need external state.
	Context() interface{}
}

// Spec is a value that might be known upfront, might be the value of
// another field, or might need to be computed from the facade. Field
// attributes like Offset, Length, Count, Condition and Switch are all Specs.
type Spec interface {
	// Eval resolves the spec's value against f.
	Eval(f Facade) (interface{}, error)
	fmt.Stringer
}

// Const wraps a value known at definition time.
type Const struct {
	Value interface{}
}

// C is a short constructor for Const.
func C(v interface{}) Const { return Const{Value: v} }

func (c Const) Eval(Facade) (interface{}, error) { return c.Value, nil }
func (c Const) String() string                   { return fmt.Sprintf("%v", c.Value) }

// FieldRef resolves to the current value of another field, by name.
// Equivalent to Python's `this.name`.
type FieldRef struct {
	Name string
}

// Ref is a short constructor for FieldRef.
func Ref(name string) FieldRef { return FieldRef{Name: name} }

func (r FieldRef) Eval(f Facade) (interface{}, error) {
	v, err := f.Get(r.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving field reference %q", r.Name)
	}
	return v, nil
}

func (r FieldRef) String() string { return "this." + r.Name }

// ThunkFunc resolves a Spec by calling an arbitrary Go function with the
// facade. Used when a dependency can't be expressed as a simple reference or
// expression tree.
type ThunkFunc func(f Facade) (interface{}, error)

func (t ThunkFunc) Eval(f Facade) (interface{}, error) { return t(f) }
func (t ThunkFunc) String() string                     { return "<func>" }

// Op identifies a binary or unary operator usable in an expression tree.
type Op string

const (
	OpAdd    Op = "+"
	OpSub    Op = "-"
	OpMul    Op = "*"
	OpDiv    Op = "/"
	OpMod    Op = "%"
	OpEq     Op = "=="
	OpNe     Op = "!="
	OpLt     Op = "<"
	OpLe     Op = "<="
	OpGt     Op = ">"
	OpGe     Op = ">="
	OpAnd    Op = "&&"
	OpOr     Op = "||"
	OpNeg    Op = "neg"
	OpNot    Op = "not"
	OpLength Op = "len_"
)

// BinaryOp is a two-operand node in an expression tree, equivalent to
// Python's BinaryExpression.
type BinaryOp struct {
	Op          Op
	Left, Right Spec
}

// Bin is a short constructor for BinaryOp.
func Bin(op Op, left, right Spec) BinaryOp { return BinaryOp{Op: op, Left: left, Right: right} }

func (b BinaryOp) Eval(f Facade) (interface{}, error) {
	l, err := b.Left.Eval(f)
	if err != nil {
		return nil, err
	}
	r, err := b.Right.Eval(f)
	if err != nil {
		return nil, err
	}
	return applyBinary(b.Op, l, r)
}

func (b BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryOp is a single-operand node in an expression tree.
type UnaryOp struct {
	Op      Op
	Operand Spec
}

// Un is a short constructor for UnaryOp.
func Un(op Op, operand Spec) UnaryOp { return UnaryOp{Op: op, Operand: operand} }

func (u UnaryOp) Eval(f Facade) (interface{}, error) {
	v, err := u.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	return applyUnary(u.Op, v)
}

func (u UnaryOp) String() string {
	return fmt.Sprintf("%s(%s)", u.Op, u.Operand)
}

// Len builds a Spec equivalent to Python's `len_(this.name)`: the length of
// whatever value the inner Spec resolves to.
func Len(inner Spec) UnaryOp {
	return UnaryOp{Op: OpLength, Operand: inner}
}

func applyUnary(op Op, v interface{}) (interface{}, error) {
	switch op {
	case OpNeg:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return negate(v, f), nil
	case OpNot:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Errorf("operand of %q is not a bool: %v", op, v)
		}
		return !b, nil
	case OpLength:
		return lengthOf(v)
	default:
		return nil, errors.Errorf("unknown unary operator %q", op)
	}
}

func lengthOf(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return len(t), nil
	case []byte:
		return len(t), nil
	default:
		if lenner, ok := v.(interface{ Len() int }); ok {
			return lenner.Len(), nil
		}
		return nil, errors.Errorf("len_() unsupported for value of type %T", v)
	}
}

func negate(orig interface{}, f float64) interface{} {
	switch orig.(type) {
	case int, int8, int16, int32, int64:
		return -int64(f)
	case uint, uint8, uint16, uint32, uint64:
		return -int64(f)
	default:
		return -f
	}
}

func applyBinary(op Op, l, r interface{}) (interface{}, error) {
	switch op {
	case OpAnd, OpOr:
		lb, lok := l.(bool)
		rb, rok := r.(bool)
		if !lok || !rok {
			return nil, errors.Errorf("operands of %q must be bool, got %T and %T", op, l, r)
		}
		if op == OpAnd {
			return lb && rb, nil
		}
		return lb || rb, nil
	case OpEq:
		return l == r, nil
	case OpNe:
		return l != r, nil
	}

	lf, err := toFloat(l)
	if err != nil {
		return nil, errors.Wrapf(err, "left operand of %q", op)
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, errors.Wrapf(err, "right operand of %q", op)
	}

	switch op {
	case OpAdd:
		return rewrapInt(l, r, lf+rf), nil
	case OpSub:
		return rewrapInt(l, r, lf-rf), nil
	case OpMul:
		return rewrapInt(l, r, lf*rf), nil
	case OpDiv:
		if rf == 0 {
			return nil, errors.Errorf("division by zero")
		}
		return rewrapInt(l, r, lf/rf), nil
	case OpMod:
		if rf == 0 {
			return nil, errors.Errorf("modulo by zero")
		}
		li, ri := int64(lf), int64(rf)
		return rewrapInt(l, r, float64(li%ri)), nil
	case OpLt:
		return lf < rf, nil
	case OpLe:
		return lf <= rf, nil
	case OpGt:
		return lf > rf, nil
	case OpGe:
		return lf >= rf, nil
	default:
		return nil, errors.Errorf("unknown binary operator %q", op)
	}
}

// rewrapInt returns an int64 when either operand was an integer type, else
// the raw float, so an arithmetic Spec over integer fields produces an
// integer rather than drifting to float64.
func rewrapInt(l, r interface{}, v float64) interface{} {
	if isIntType(l) && isIntType(r) {
		return int64(v)
	}
	return v
}

func isIntType(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return 0, errors.Errorf("value of type %T is not numeric", v)
	}
}

// Resolve evaluates a Spec that may be nil, returning (zero value, false,
// nil) when spec is nil so callers can distinguish "not set" from "set to
// zero".
func Resolve(spec Spec, f Facade) (interface{}, bool, error) {
	if spec == nil {
		return nil, false, nil
	}
	v, err := spec.Eval(f)
	if err != nil {
		return nil, false, errors.WithStack(dstructerr.WithField(err, "", -1))
	}
	return v, true, nil
}

// ResolveInt evaluates spec and converts the result to int64. It returns
// (0, false, nil) for a nil spec.
func ResolveInt(spec Spec, f Facade) (int64, bool, error) {
	v, ok, err := Resolve(spec, f)
	if err != nil || !ok {
		return 0, ok, err
	}
	i, err := toFloat(v)
	if err != nil {
		return 0, false, err
	}
	return int64(i), true, nil
}
