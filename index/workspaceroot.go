package index

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rudy-go/rudy/symtab"
)

// DetectModuleRoot walks upward from the directory containing binaryPath
// looking for a go.mod, the translation of rudy_dwarf::file::detect_cargo_root's
// Cargo-workspace search into this module's own ecosystem: a binary built
// from a Go workspace should have its indexed debug files scoped to that
// workspace rather than to every path a compiler embedded.
func DetectModuleRoot(binaryPath string) (string, bool) {
	dir, err := filepath.Abs(filepath.Dir(binaryPath))
	if err != nil {
		return "", false
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// IndexedDebugFiles narrows files to the subset with at least one source
// file under root (or whose path starts with "."), mirroring
// rudy-db/src/index.rs's indexed_debug_files: a DebugFile whose line
// program only references sources outside the detected workspace (vendored
// dependency sources, for instance) is dropped from name-based search, but
// stays reachable through raw address lookups, which never consult this
// filter. An undetected root indexes nothing, matching the original's
// behavior when no workspace could be found.
func (pf *PerFile) IndexedDebugFiles(files []symtab.DebugFile, root string) []symtab.DebugFile {
	if root == "" {
		return nil
	}

	var out []symtab.DebugFile
	for _, f := range files {
		sources, err := pf.SourceFiles(f)
		if err != nil {
			continue
		}
		for _, s := range sources {
			if isLocalSource(s.Path, root) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func isLocalSource(path, root string) bool {
	if strings.HasPrefix(path, ".") {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
