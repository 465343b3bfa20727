// Package structure implements the structure engine: given an ordered list
// of fields, it drives the pre-population, main parsing/emitting pass, and
// post-parse checks described for [MODULE STRUCTURE].
package structure

import (
	"log"

	"go.opentelemetry.io/otel/trace"

	"github.com/dstructgo/binstruct/expr"
)

// NegativeOffsetPolicy controls how Emit handles a field whose Offset spec
// resolves to a negative value (meaning "seek from the end").
type NegativeOffsetPolicy int

const (
	// RejectNegativeOffset fails Emit with dstructerr.WriteError when a
	// negative offset is used and the underlying stream's length isn't
	// known upfront. This is the default: emitting to a growing stream
	// (a net.Conn, a hash.Hash writer) can't honor "seek from the end"
	// without buffering the whole output, and buffering silently changes
	// the memory profile of a call the caller didn't ask to buffer.
	RejectNegativeOffset NegativeOffsetPolicy = iota
	// RequireKnownLength allows negative offsets only when the caller
	// supplies the total emitted length upfront via Options.KnownLength,
	// so the negative offset can be resolved to an absolute one without
	// buffering.
	RequireKnownLength
)

// Options configures how a Definition parses and emits.
type Options struct {
	// StructureName is used in check-failure and error messages.
	StructureName string
	// Alignment, if > 0, pads every field's start offset up to the next
	// multiple of Alignment bytes, unless the field sets its own Offset or
	// Skip.
	Alignment int64
	// CaptureRaw, if true, retains the raw bytes each field was parsed
	// from on its FieldContext, for inspection/round-trip fidelity checks.
	CaptureRaw bool
	// Checks run after all fields are parsed (or, for Emit, before any
	// field is written); every one must return true or the operation
	// fails with dstructerr.CheckError.
	Checks []func(f expr.Facade) bool
	// NegativeOffsetPolicy governs Emit's behavior for fields using a
	// negative Offset spec.
	NegativeOffsetPolicy NegativeOffsetPolicy
	// KnownLength is the total length of the emitted output, required
	// only when NegativeOffsetPolicy is RequireKnownLength and a field
	// actually uses a negative offset.
	KnownLength int64
	// UserData is threaded through to expr.Facade.Context() for
	// ThunkFuncs that need external state (e.g. a decode-time codec table).
	UserData interface{}

	// Logger receives coarse tracing of the pre-population and lazy-skip
	// decisions the structure engine makes. Defaults to a discard logger;
	// never used on the per-byte decode path.
	Logger *log.Logger

	// Tracer, if set, wraps each top-level Parse/Emit call in a span named
	// after StructureName, recording the failing field name and byte
	// offset as span attributes on error. Defaults to a no-op tracer.
	Tracer trace.Tracer
}

var discardLogger = log.New(discardWriter{}, "", 0)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return discardLogger
}

func (o Options) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return trace.NewNoopTracerProvider().Tracer("github.com/dstructgo/binstruct/structure")
}
