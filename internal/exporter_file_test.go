package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/appforge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	exp := NewFileExporter(dir)

	location, err := exp.Export(context.Background(), "todo.html", []byte("<html>v1</html>"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(location))
	assert.Equal(t, "todo.html", filepath.Base(location))

	_, err = exp.Export(context.Background(), "todo.html", []byte("<html>v2</html>"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "todo.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>v2</html>", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestFileExporter_StaysInDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "out")
	exp := NewFileExporter(dir)

	location, err := exp.Export(context.Background(), "../../escape.html", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.html"), location)

	_, err = os.Stat(filepath.Join(root, "escape.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileExporter_Errors(t *testing.T) {
	exp := NewFileExporter(t.TempDir())

	tests := []struct {
		name    string
		ctx     func() context.Context
		file    string
		wantErr string
	}{
		{name: "empty name", ctx: context.Background, file: "  ", wantErr: "invalid export name"},
		{name: "root", ctx: context.Background, file: "/", wantErr: "invalid export name"},
		{
			name: "cancelled",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			file:    "a.html",
			wantErr: "export cancelled",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := exp.Export(tt.ctx(), tt.file, []byte("x"))
			var fe *appforge.ForgeError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, appforge.ErrCodeExportFailed, fe.Code)
			assert.Contains(t, fe.Message, tt.wantErr)
		})
	}
}
