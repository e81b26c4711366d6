// Package filemode implements the Git file mode octal values and their
// validation, as they appear inside tree objects.
package filemode

import (
	"fmt"
	"strconv"
)

// A FileMode represents the kind of tree entries used by git. It
// resembles regular file systems modes, although FileModes are
// considerably simpler (there are not so many), and uses octal
// numeral system constants.
type FileMode uint32

const (
	// Empty is used as the FileMode of tree elements when comparing
	// trees in the following situations:
	//
	// - the mode of tree elements before their creation.
	// - the mode of tree elements after their deletion.
	// - the mode of unmerged elements when checking the index.
	//
	// Empty has no file system equivalent. As Empty is the zero value
	// of FileMode, it is always used as the default value.
	Empty FileMode = 0
	// Dir represent a Directory.
	Dir FileMode = 0o040000
	// Regular represent non-executable files.
	Regular FileMode = 0o100644
	// Executable represents executable files.
	Executable FileMode = 0o100755
	// Symlink represents symbolic links to files.
	Symlink FileMode = 0o120000
	// Submodule represents git submodules.
	Submodule FileMode = 0o160000
)

// New takes the octal string representation of a FileMode and returns
// the FileMode and a nil error. If the string can not be parsed to a
// 32 bit unsigned octal number, it returns Empty and an error.
//
// Modes outside the Git standard set are rejected: trees carrying them
// are considered malformed.
func New(s string) (FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, fmt.Errorf("malformed mode (%s)", s)
	}

	m := FileMode(n)
	if !m.Valid() {
		return Empty, fmt.Errorf("malformed mode (%s)", s)
	}

	return m, nil
}

// Valid returns true if m belongs to the Git standard mode set.
func (m FileMode) Valid() bool {
	switch m {
	case Dir, Regular, Executable, Symlink, Submodule:
		return true
	}
	return false
}

// String returns the FileMode as the octal string used inside tree
// objects: no padding for directories, six digits otherwise.
func (m FileMode) String() string {
	return strconv.FormatUint(uint64(m), 8)
}

// IsFile returns if the FileMode represents that of a file, this is,
// Regular, Executable or Symlink.
func (m FileMode) IsFile() bool {
	return m == Regular || m == Executable || m == Symlink
}
