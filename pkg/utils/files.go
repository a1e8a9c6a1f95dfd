package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MachinePlaceholder is substituted with a machine id in path templates
const MachinePlaceholder = "{machine_id}"

// SafeMachineID maps a machine id to a string usable as a file name or object
// key. Bytes outside [A-Za-z0-9._-] are percent-encoded, as is a leading dot,
// so distinct ids never share a name and no id becomes "." or "..".
func SafeMachineID(machineID string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(machineID))
	for i := 0; i < len(machineID); i++ {
		c := machineID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		case c == '.' && i > 0:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0F])
		}
	}
	return b.String()
}

// ExpandMachinePath fills the {machine_id} placeholder of a path template.
// A template without the placeholder is returned unchanged.
func ExpandMachinePath(template, machineID string) string {
	return strings.ReplaceAll(template, MachinePlaceholder, SafeMachineID(machineID))
}

// EnsureDir ensures the parent directory of path exists
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// AtomicWriteFile writes data to a temp file next to path and renames it into
// place, so readers never observe a partially written file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
