package value

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Exec is the name or path of an executable. A bare name is looked up in
// $PATH.
type Exec string

func NewExec(p *string, val string) *Exec {
	*p = val

	return (*Exec)(p)
}

func (u *Exec) Set(val string) error { *u = Exec(val); return nil }
func (u *Exec) String() string       { return string(*u) }
func (u *Exec) IsEmpty() bool        { return *u == "" }

func (u *Exec) Validate() error {
	if _, err := exec.LookPath(string(*u)); err != nil {
		return fmt.Errorf("%s not found or is not executable", string(*u))
	}

	return nil
}

// File is the path of an existing regular file. An empty path is valid.
type File string

func NewFile(p *string, val string) *File {
	*p = val

	return (*File)(p)
}

func (u *File) Set(val string) error { *u = File(val); return nil }
func (u *File) String() string       { return string(*u) }
func (u *File) IsEmpty() bool        { return *u == "" }

func (u *File) Validate() error {
	if u.IsEmpty() {
		return nil
	}

	path := string(*u)

	info, err := os.Stat(path)
	switch {
	case err != nil:
		return fmt.Errorf("%s does not exist", path)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%s is not a regular file", path)
	}

	return nil
}

// WritablePath is the path of a file that will be written. The file itself
// doesn't need to exist, but its directory does. An empty path is valid.
type WritablePath string

func NewWritablePath(p *string, val string) *WritablePath {
	*p = val

	return (*WritablePath)(p)
}

func (u *WritablePath) Set(val string) error { *u = WritablePath(val); return nil }
func (u *WritablePath) String() string       { return string(*u) }
func (u *WritablePath) IsEmpty() bool        { return *u == "" }

func (u *WritablePath) Validate() error {
	if u.IsEmpty() {
		return nil
	}

	path := string(*u)
	dir := filepath.Dir(path)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("the directory %s does not exist", dir)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	return nil
}
