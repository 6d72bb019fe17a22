// Package uploads stores user supplied images in a single managed directory.
//
// Files are addressed only by a sanitized base name. All writes go through an
// os.Root opened on the directory, so no name can resolve outside of it.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyName is returned when a file name sanitizes to nothing.
	ErrEmptyName = errors.New("file name is empty after sanitizing")
	// ErrNoExtension is returned when the sanitized name has no extension,
	// which would leave the served content type to sniffing.
	ErrNoExtension = errors.New("file name has no extension after sanitizing")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true,
}

// Sanitize reduces a client supplied file name to a safe base name made of
// ASCII letters, digits, '_', '.' and '-'. It may return "".
func Sanitize(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return ' '
		case r > unicode.MaxASCII:
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" && windowsDeviceNames[strings.ToUpper(strings.SplitN(name, ".", 2)[0])] {
		name = "_" + name
	}
	return name
}

// Dir is the managed upload directory.
type Dir struct {
	path string
	root *os.Root
}

// Open creates path if needed and opens it as the upload root.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", path, err)
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("open upload dir %s: %w", path, err)
	}
	return &Dir{path: path, root: root}, nil
}

// Path returns the directory this Dir writes into.
func (d *Dir) Path() string {
	return d.path
}

// Save writes r under the sanitized form of name, replacing any existing file
// with that name, and syncs it to disk. It returns the stored name.
func (d *Dir) Save(name string, r io.Reader) (string, error) {
	safe := Sanitize(name)
	if safe == "" {
		return "", ErrEmptyName
	}
	if filepath.Ext(safe) == "" {
		return "", fmt.Errorf("%w: %q", ErrNoExtension, safe)
	}

	f, err := d.root.OpenFile(safe, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", safe, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", safe, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("sync %s: %w", safe, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", safe, err)
	}
	return safe, nil
}

// FullPath returns the on-disk location of a stored name.
func (d *Dir) FullPath(name string) string {
	return filepath.Join(d.path, name)
}

// Close releases the directory handle.
func (d *Dir) Close() error {
	return d.root.Close()
}
