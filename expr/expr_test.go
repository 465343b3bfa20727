package expr

import (
	"testing"

	"github.com/dstructgo/binstruct/dstructerr"
)

type mapFacade map[string]interface{}

func (m mapFacade) Get(name string) (interface{}, error) {
	v, ok := m[name]
	if !ok {
		return nil, dstructerr.FieldNotFound
	}
	return v, nil
}
func (m mapFacade) Parent() Facade      { return nil }
func (m mapFacade) Root() Facade        { return m }
func (m mapFacade) Context() interface{} { return nil }

func TestBinaryOpEval(t *testing.T) {
	f := mapFacade{"x": int64(4), "y": int64(5)}

	tests := []struct {
		name string
		spec Spec
		want interface{}
	}{
		{"add", Bin(OpAdd, Ref("x"), Ref("y")), int64(9)},
		{"sub", Bin(OpSub, Ref("y"), Ref("x")), int64(1)},
		{"mul const", Bin(OpMul, Ref("x"), C(int64(3))), int64(12)},
		{"compare", Bin(OpLt, Ref("x"), Ref("y")), true},
		{"nested", Bin(OpEq, Bin(OpAdd, Ref("x"), C(int64(1))), Ref("y")), true},
	}

	for _, test := range tests {
		got, err := test.spec.Eval(f)
		if err != nil {
			t.Errorf("Test(%s): Eval() error = %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("Test(%s): Eval() = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestLen(t *testing.T) {
	f := mapFacade{"data": []byte("hello")}
	got, err := Len(Ref("data")).Eval(f)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got != 5 {
		t.Errorf("Len() = %v, want 5", got)
	}
}

func TestFieldRefMissing(t *testing.T) {
	f := mapFacade{}
	_, err := Ref("missing").Eval(f)
	if err == nil {
		t.Fatalf("Eval() error = nil, want non-nil")
	}
}

func TestResolveNil(t *testing.T) {
	v, ok, err := Resolve(nil, mapFacade{})
	if err != nil || ok || v != nil {
		t.Errorf("Resolve(nil) = (%v, %v, %v), want (nil, false, nil)", v, ok, err)
	}
}
