// Package parsectx implements the context that is threaded through parsing
// and emitting: a Context holds one FieldContext per field of the
// structure currently being processed, plus a link to the enclosing
// structure's context so cross-field expressions can navigate outward.
package parsectx

import (
	"github.com/pkg/errors"

	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/dstructerr"
	"github.com/dstructgo/binstruct/expr"
)

// NotProvided is the sentinel used in place of nil to mean "no value was
// ever set here", distinguishing it from a field legitimately holding nil.
var NotProvided = &struct{ name string }{"not-provided"}

// Context holds the field contexts for one structure instance as it is
// parsed from, or emitted to, a stream. Structures nest: a StructureField's
// inner Context has this one as its Parent.
type Context struct {
	Parent     *Context
	Flat       bool
	Stream     bstream.Stream
	CaptureRaw bool
	Done       bool
	UserData   interface{}

	fields    map[string]*FieldContext
	fieldOrder []string
}

// New creates a root or nested Context. stream is the stream fields in this
// context will read from/write to; flat makes unresolved name lookups fall
// through to parent instead of failing.
func New(parent *Context, flat bool, stream bstream.Stream, captureRaw bool) *Context {
	return &Context{
		Parent:     parent,
		Flat:       flat,
		Stream:     stream,
		CaptureRaw: captureRaw,
		fields:     make(map[string]*FieldContext),
	}
}

// Declare registers a field name in parse/field order, with an initial
// value (NotProvided if none). Must be called once per field before parsing
// begins, so forward references resolve predictably.
func (c *Context) Declare(name string, value interface{}) *FieldContext {
	fc := &FieldContext{context: c, value: value}
	c.fields[name] = fc
	c.fieldOrder = append(c.fieldOrder, name)
	return fc
}

// Field returns the named field's context, or nil if undeclared.
func (c *Context) Field(name string) *FieldContext {
	return c.fields[name]
}

// FieldOrder returns field names in declaration order.
func (c *Context) FieldOrder() []string {
	return c.fieldOrder
}

// Root walks Parent links to the outermost Context.
func (c *Context) Root() *Context {
	root := c
	for root.Parent != nil {
		root = root.Parent
	}
	return root
}

// Get resolves name against this context's own fields, falling through to
// Parent if Flat is set. It is the Context-level counterpart of Python's
// ParsingContext.__getitem__.
func (c *Context) Get(name string) (interface{}, error) {
	if fc, ok := c.fields[name]; ok && fc.HasValue() {
		return fc.Value()
	}
	if c.Flat && c.Parent != nil {
		return c.Parent.Get(name)
	}
	return nil, errors.Wrapf(dstructerr.FieldNotFound, "dependent field %q is not loaded yet", name)
}

// Values returns a snapshot map of every field's current value, skipping
// fields that have none yet and fields whose lazy value fails to force.
func (c *Context) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(c.fields))
	for name, fc := range c.fields {
		if fc.HasValue() {
			v, err := fc.Value()
			if err == nil {
				out[name] = v
			}
		}
	}
	return out
}

// facade adapts a Context (scoped to one field) to expr.Facade.
type facade struct {
	ctx   *Context
	field *FieldContext
}

// Facade returns the expr.Facade a Spec attached to field fc should be
// evaluated against.
func (c *Context) Facade(fc *FieldContext) expr.Facade {
	return &facade{ctx: c, field: fc}
}

func (f *facade) Get(name string) (interface{}, error) {
	return f.ctx.Get(name)
}

func (f *facade) Parent() expr.Facade {
	if f.ctx.Parent == nil {
		return nil
	}
	return &facade{ctx: f.ctx.Parent}
}

func (f *facade) Root() expr.Facade {
	return &facade{ctx: f.ctx.Root()}
}

func (f *facade) Context() interface{} {
	return f.ctx.Root().UserData
}
