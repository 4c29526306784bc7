package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/dwarfdie"
)

func TestModuleIndexLookupByOffset(t *testing.T) {
	mi := &ModuleIndex{
		ranges: []ModuleRange{
			{Path: []string{"crate"}, Start: 0x10, End: 0x100},
			{Path: []string{"crate", "inner"}, Start: 0x20, End: 0x40},
		},
	}

	path, ok := mi.LookupByOffset(0x25)
	require.True(t, ok)
	require.Equal(t, []string{"crate", "inner"}, path)

	path, ok = mi.LookupByOffset(0x50)
	require.True(t, ok)
	require.Equal(t, []string{"crate"}, path)

	_, ok = mi.LookupByOffset(0x5)
	require.False(t, ok)
}

func TestModuleIndexLookupByPath(t *testing.T) {
	root := &moduleMapNode{children: map[string]*moduleMapNode{
		"crate": {
			children: map[string]*moduleMapNode{
				"inner": {children: map[string]*moduleMapNode{}, entries: []dwarfdie.Die{{Offset: 0x30}}},
			},
			entries: nil,
		},
	}}
	mi := &ModuleIndex{root: root}

	require.NotNil(t, mi.LookupByPath([]string{"crate", "inner"}))
	require.Nil(t, mi.LookupByPath([]string{"crate", "missing"}))
}
