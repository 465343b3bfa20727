package structure

import (
	"fmt"
	"strings"

	"github.com/dstructgo/binstruct/field"
)

// Describer is implemented by field types that know how to render
// themselves in a C-struct-like description; fields that don't implement
// it fall back to their Go type name.
type Describer interface {
	Ctype() string
}

// Describe renders the Definition as a C-style struct declaration, mirroring
// a debugging aid many binary-layout libraries provide.
func (d *Definition) Describe() string {
	var b strings.Builder
	name := d.Options.StructureName
	if name == "" {
		name = "struct"
	}
	fmt.Fprintf(&b, "struct %s {\n", name)
	for _, f := range d.Fields {
		if desc, ok := f.(Describer); ok {
			fmt.Fprintf(&b, "    %s;\n", desc.Ctype())
			continue
		}
		fmt.Fprintf(&b, "    %s %s;\n", fieldTypeName(f), f.Name())
	}
	b.WriteString("}")
	return b.String()
}

func fieldTypeName(f field.Field) string {
	full := fmt.Sprintf("%T", f)
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		return strings.TrimPrefix(full[idx+1:], "*")
	}
	return full
}
