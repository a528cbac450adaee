package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lychee-technology/appforge"
)

// FileExporter writes documents into a local directory.
type FileExporter struct {
	dir string
}

var _ appforge.Exporter = (*FileExporter)(nil)

func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{dir: dir}
}

// Export writes html to dir/name and returns the absolute path. The name is
// reduced to its base so callers cannot escape the directory.
func (e *FileExporter) Export(ctx context.Context, name string, html []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", appforge.NewExportError("export cancelled", err)
	}

	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", appforge.NewExportError(fmt.Sprintf("invalid export name %q", name), nil)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", appforge.NewExportError("failed to create export directory", err)
	}

	target := filepath.Join(e.dir, base)
	tmp, err := os.CreateTemp(e.dir, "."+base+".*")
	if err != nil {
		return "", appforge.NewExportError("failed to create export file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after rename

	if _, err := tmp.Write(html); err != nil {
		tmp.Close()
		return "", appforge.NewExportError("failed to write export file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", appforge.NewExportError("failed to write export file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", appforge.NewExportError("failed to write export file", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", appforge.NewExportError("failed to move export file into place", err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return target, nil
	}
	return abs, nil
}
