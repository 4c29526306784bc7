package addr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/index"
)

func TestContainsSource(t *testing.T) {
	sources := []index.SourceFile{
		{Path: "src/main.rs", CompDir: "/build"},
		{Path: "src/lib.rs", CompDir: "/build"},
	}
	require.True(t, containsSource(sources, "src/main.rs"))
	require.False(t, containsSource(sources, "src/other.rs"))
	require.False(t, containsSource(nil, "src/main.rs"))
}
