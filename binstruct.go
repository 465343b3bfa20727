// Package binstruct is the public facade over the field/parsectx/structure
// runtime, the way the teacher's claw.go re-exports internal/field at the
// repo root: callers import this one package rather than the expr, field,
// parsectx or structure subpackages directly.
package binstruct

import (
	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
	"github.com/dstructgo/binstruct/field"
	"github.com/dstructgo/binstruct/structure"
)

// Stream is the minimal tell/seek/read/write contract a Definition parses
// from or emits to.
type Stream = bstream.Stream

// NewStream wraps a Go standard-library reader/writer/seeker for use with
// this package.
func NewStream(raw interface{}) Stream { return bstream.New(raw) }

// Field is the contract every field type satisfies.
type Field = field.Field

// Facade is the read-only view of the current parsing/emitting context
// that Spec, DecoderFunc and OverrideFunc are evaluated against.
type Facade = expr.Facade

// DecoderFunc post-processes a field's raw decoded value.
type DecoderFunc = field.DecoderFunc

// OverrideFunc computes the value actually written for a field.
type OverrideFunc = field.OverrideFunc

// Spec is the sum type behind offset/skip/length/count/condition specs:
// a constant, a reference to a sibling field, or a thunk over the current
// context.
type Spec = expr.Spec

var (
	// C wraps a constant value as a Spec.
	C = expr.C
	// Ref resolves to a sibling field's value by name.
	Ref = expr.Ref
	// Thunk wraps an arbitrary function of the current context as a Spec.
	Thunk = func(fn func(f expr.Facade) (interface{}, error)) Spec { return expr.ThunkFunc(fn) }
	// Len builds a Spec that evaluates to len(inner).
	Len = expr.Len
	// Bin builds a binary expression Spec, e.g. Bin(OpAdd, Ref("a"), C(1)).
	Bin = expr.Bin
	// Un builds a unary expression Spec.
	Un = expr.Un
)

// Op identifies an expression operator for Bin/Un.
type Op = expr.Op

const (
	OpAdd    = expr.OpAdd
	OpSub    = expr.OpSub
	OpMul    = expr.OpMul
	OpDiv    = expr.OpDiv
	OpMod    = expr.OpMod
	OpEq     = expr.OpEq
	OpNe     = expr.OpNe
	OpLt     = expr.OpLt
	OpLe     = expr.OpLe
	OpGt     = expr.OpGt
	OpGe     = expr.OpGe
	OpAnd    = expr.OpAnd
	OpOr     = expr.OpOr
	OpNeg    = expr.OpNeg
	OpNot    = expr.OpNot
	OpLength = expr.OpLength
)

// Built-in field constructors.
var (
	NewBytesField                  = field.NewBytesField
	NewTerminatedField             = field.NewTerminatedField
	NewStringField                 = field.NewStringField
	NewIntegerField                = field.NewIntegerField
	NewVariableLengthIntegerField  = field.NewVariableLengthIntegerField
	NewBitField                    = field.NewBitField
	NewConstantField               = field.NewConstantField
	NewStructureField              = field.NewStructureField
	NewCountArrayField             = field.NewCountArrayField
	NewLengthArrayField            = field.NewLengthArrayField
	NewConditionalField            = field.NewConditionalField
	NewSwitchField                 = field.NewSwitchField
	NewEnumField                   = field.NewEnumField
	NewStructField                = field.NewStructField
	CharField                     = field.CharField
	UnsignedByteField             = field.UnsignedByteField
	ShortField                    = field.ShortField
	UnsignedShortField            = field.UnsignedShortField
	IntField                      = field.IntField
	UnsignedIntField              = field.UnsignedIntField
	LongField                     = field.LongField
	UnsignedLongField             = field.UnsignedLongField
)

// ByteOrder selects big- or little-endian encoding for IntegerField and
// StructField.
type ByteOrder = field.ByteOrder

const (
	BigEndian    = field.BigEndian
	LittleEndian = field.LittleEndian
)

// SubStructure lets a nested Definition be embedded via StructureField
// without a structure -> field import cycle.
type SubStructure = field.SubStructure

// EnumValue and EnumMapper back EnumField.
type EnumValue = field.EnumValue
type EnumMapper = field.EnumMapper

// Definition is an ordered list of fields plus the options governing how
// they are parsed and emitted.
type Definition = structure.Definition

// Options configures a Definition.
type Options = structure.Options

// NegativeOffsetPolicy controls Emit's handling of seek-from-end offsets.
type NegativeOffsetPolicy = structure.NegativeOffsetPolicy

const (
	RejectNegativeOffset = structure.RejectNegativeOffset
	RequireKnownLength   = structure.RequireKnownLength
)

// New builds a Definition from fields and options.
func New(fields []Field, opts Options) *Definition { return structure.New(fields, opts) }

// LazyValue is returned in place of a field's value when that field was
// left unparsed; call Force to read it.
type LazyValue = structure.LazyValue

// Error taxonomy, re-exported for errors.Is against a caller's own error
// value without importing dstructerr directly.
var (
	ErrStreamExhausted             = dstructerr.StreamExhausted
	ErrWriteError                  = dstructerr.WriteError
	ErrCheckError                  = dstructerr.CheckError
	ErrOverflow                    = dstructerr.Overflow
	ErrImpossibleToCalculateLength = dstructerr.ImpossibleToCalculateLength
	ErrParseError                  = dstructerr.ParseError
	ErrFieldNotFound               = dstructerr.FieldNotFound
	ErrNotSeekable                 = dstructerr.ErrNotSeekable
)

// FieldError annotates an error with the logical field path and stream
// offset active when it occurred.
type FieldError = dstructerr.FieldError
