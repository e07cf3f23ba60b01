package engine

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", &fs.PathError{Op: "open", Path: "/x.js", Err: syscall.ENOENT}, "No such file or directory"},
		{"permission", &fs.PathError{Op: "open", Path: "/x.js", Err: syscall.EACCES}, "Permission denied"},
		{"plain", errors.New("short read"), "Short read"},
		{"empty", errors.New(""), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readReason(tt.err))
		})
	}
}

func TestReadReason_Directory(t *testing.T) {
	_, err := os.ReadFile(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, "Is a directory", readReason(err))
}
