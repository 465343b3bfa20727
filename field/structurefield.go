package field

import (
	"github.com/dstructgo/binstruct/bstream"
	"github.com/dstructgo/binstruct/parsectx"
)

// SubStructure is the facet of structure.Definition that StructureField
// depends on. Defined here rather than imported from the structure package
// to avoid a field<->structure import cycle: structure.Definition holds a
// list of Field, and a StructureField holds a SubStructure.
type SubStructure interface {
	ParseFrom(stream bstream.Stream, parent *parsectx.Context) (interface{}, int64, error)
	EmitTo(stream bstream.Stream, value interface{}, parent *parsectx.Context) (int64, error)
	StaticLen() (int64, error)
}

// StructureField embeds a nested structure as a field of the enclosing one,
// sharing the enclosing Context as its parent so cross-structure Specs can
// navigate outward with expr.FieldRef against the parent's facade.
type StructureField struct {
	Base
	Sub SubStructure
}

// NewStructureField creates a StructureField wrapping sub.
func NewStructureField(name string, sub SubStructure) *StructureField {
	return &StructureField{Base: NewBase(name), Sub: sub}
}

func (f *StructureField) Len() (int64, error) {
	return f.Sub.StaticLen()
}

func (f *StructureField) SeekEnd(stream bstream.Stream, ctx *parsectx.Context, offset int64) (int64, bool, error) {
	n, err := f.Sub.StaticLen()
	if err != nil {
		return 0, false, nil
	}
	newOffset, err := seekCur(stream, n)
	if err != nil {
		return 0, false, err
	}
	return newOffset, true, nil
}

func (f *StructureField) FromStream(stream bstream.Stream, ctx *parsectx.Context) (interface{}, int64, error) {
	return f.Sub.ParseFrom(stream, ctx)
}

func (f *StructureField) ToStream(stream bstream.Stream, value interface{}, ctx *parsectx.Context) (int64, error) {
	return f.Sub.EmitTo(stream, value, ctx)
}
