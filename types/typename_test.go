package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPrimitivesAndCompounds(t *testing.T) {
	cases := []struct {
		name      string
		wantShape shape
		wantRest  string
	}{
		{"u8", shapePrimitive, "u8"},
		{"f64", shapePrimitive, "f64"},
		{"()", shapeUnit, ""},
		{"&TestStruct", shapeReference, "TestStruct"},
		{"&mut TestStruct", shapeReference, "TestStruct"},
		{"[i32; 4]", shapeArray, "i32; 4"},
		{"(u8, bool)", shapeTuple, "u8, bool"},
	}
	for _, c := range cases {
		gotShape, gotRest := classify(c.name)
		require.Equalf(t, c.wantShape, gotShape, "name=%q", c.name)
		require.Equalf(t, c.wantRest, gotRest, "name=%q", c.name)
	}
}

func TestClassifyStandardContainers(t *testing.T) {
	cases := []struct {
		name      string
		wantShape shape
	}{
		{"alloc::vec::Vec<u8>", shapeVec},
		{"alloc::string::String", shapeString},
		{"core::option::Option<i32>", shapeOption},
		{"core::result::Result<i32, alloc::string::String>", shapeResult},
		{"std::collections::hash::map::HashMap<alloc::string::String, i32>", shapeHashMap},
		{"alloc::collections::btree::map::BTreeMap<i32, i32>", shapeBTreeMap},
		{"alloc::boxed::Box<i32>", shapeBox},
		{"alloc::rc::Rc<i32>", shapeRc},
		{"alloc::sync::Arc<i32>", shapeArc},
		{"core::cell::Cell<i32>", shapeCell},
		{"core::cell::RefCell<i32>", shapeRefCell},
		{"core::cell::UnsafeCell<i32>", shapeUnsafeCell},
		{"std::sync::mutex::Mutex<i32>", shapeMutex},
	}
	for _, c := range cases {
		gotShape, _ := classify(c.name)
		require.Equalf(t, c.wantShape, gotShape, "name=%q", c.name)
	}
}

func TestClassifyUnknownUserType(t *testing.T) {
	gotShape, gotRest := classify("crate::module::TestStruct")
	require.Equal(t, shapeUnknown, gotShape)
	require.Equal(t, "", gotRest)
}

func TestClassifyCarriesGenericsString(t *testing.T) {
	_, rest := classify("alloc::vec::Vec<alloc::string::String>")
	require.Equal(t, "<alloc::string::String>", rest)
}

func TestMutableRef(t *testing.T) {
	require.True(t, mutableRef("&mut TestStruct"))
	require.False(t, mutableRef("&TestStruct"))
}
