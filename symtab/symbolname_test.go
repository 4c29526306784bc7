package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSymbolName(t *testing.T) {
	tests := []struct {
		in   string
		want SymbolName
	}{
		{
			in:   "crate::module::foo",
			want: SymbolName{LookupName: "foo", ModulePath: []string{"crate", "module"}},
		},
		{
			in:   "foo",
			want: SymbolName{LookupName: "foo"},
		},
		{
			in:   "alloc::vec::Vec<u8>",
			want: SymbolName{LookupName: "Vec", ModulePath: []string{"alloc", "vec"}, Generics: "<u8>"},
		},
		{
			in:   "alloc::vec::Vec<alloc::string::String>",
			want: SymbolName{LookupName: "Vec", ModulePath: []string{"alloc", "vec"}, Generics: "<alloc::string::String>"},
		},
	}

	for _, tt := range tests {
		got := ParseSymbolName(tt.in)
		require.True(t, got.Equal(tt.want), "parsing %q: got %#v want %#v", tt.in, got, tt.want)
	}
}

func TestSymbolNameString(t *testing.T) {
	n := SymbolName{LookupName: "foo", ModulePath: []string{"crate", "module"}}
	require.Equal(t, "crate::module::foo", n.String())
}

func TestMatchesNameAndModule(t *testing.T) {
	n := SymbolName{LookupName: "foo", ModulePath: []string{"crate", "module"}}

	require.True(t, n.MatchesNameAndModule("foo", nil))
	require.True(t, n.MatchesNameAndModule("foo", []string{"module"}))
	require.True(t, n.MatchesNameAndModule("foo", []string{"crate", "module"}))
	require.False(t, n.MatchesNameAndModule("foo", []string{"other"}))
	require.False(t, n.MatchesNameAndModule("bar", nil))
	require.False(t, n.MatchesNameAndModule("foo", []string{"crate", "module", "extra"}))
}
