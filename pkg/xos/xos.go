// Package xos provides atomic file operations. Generated files are written
// to a temporary file and renamed into place so ninja never reads a
// half-written build.ninja.
package xos

import (
	"os"

	"github.com/google/renameio/v2"
)

// WriteFile writes data to the named file atomically using rename.
// If the file does not exist, WriteFile creates it with permissions perm;
// otherwise WriteFile truncates it before writing.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(filename, data, perm)
}

// WriteFileWithBackup writes data to a file, creating a backup of the original.
// The backup is named with a .bak extension.
func WriteFileWithBackup(filename string, data []byte, perm os.FileMode) error {
	if _, err := os.Stat(filename); err == nil {
		original, err := os.ReadFile(filename)
		if err != nil {
			return err
		}
		if err := WriteFile(filename+".bak", original, perm); err != nil {
			return err
		}
	}

	return WriteFile(filename, data, perm)
}

// PendingFile represents a file that will be written atomically.
// Call CloseAtomically to complete the write, or Cleanup to discard.
type PendingFile struct {
	tempFile *renameio.PendingFile
}

// NewPendingFile creates a new pending file for atomic writing.
func NewPendingFile(filename string, perm os.FileMode) (*PendingFile, error) {
	t, err := renameio.NewPendingFile(filename, renameio.WithPermissions(perm))
	if err != nil {
		return nil, err
	}
	return &PendingFile{
		tempFile: t,
	}, nil
}

// Write writes data to the pending file.
func (p *PendingFile) Write(data []byte) (int, error) {
	return p.tempFile.Write(data)
}

// CloseAtomically completes the write by atomically renaming the temp file.
func (p *PendingFile) CloseAtomically() error {
	return p.tempFile.CloseAtomicallyReplace()
}

// Cleanup discards the pending file without writing. It is a no-op after
// CloseAtomically succeeded.
func (p *PendingFile) Cleanup() {
	p.tempFile.Cleanup()
}
