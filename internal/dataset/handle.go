// Package dataset models references to AFNI and NIFTI image datasets on
// disk. A Handle names an artifact; it does not hold image data, and
// deriving a new handle never touches the filesystem or the source handle.
package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Kind is the storage representation of a dataset.
type Kind string

const (
	// KindAFNI is a HEAD/BRIK pair with a space suffix in its name.
	KindAFNI Kind = "AFNI"
	// KindNIFTI is a single .nii or .nii.gz file.
	KindNIFTI Kind = "NIFTI"
)

// Space tags used in AFNI dataset names.
const (
	SpaceOrig = "+orig"
	SpaceTLRC = "+tlrc"
	SpaceACPC = "+acpc"
)

// Handle identifies an image artifact by directory, base name, space tag and
// storage kind.
type Handle struct {
	Dir   string
	Base  string
	Space string
	Kind  Kind
	// Ext is ".nii" or ".nii.gz" for NIFTI datasets, empty otherwise.
	Ext string
}

// Key is the comparable identity of a handle. Two handles with equal keys
// refer to the same artifact.
type Key struct {
	Dir   string
	Base  string
	Space string
	Kind  Kind
}

// New returns an AFNI handle.
func New(dir, base, space string) Handle {
	return Handle{Dir: dir, Base: base, Space: space, Kind: KindAFNI}
}

// Key returns the handle's identity.
func (h Handle) Key() Key {
	return Key{Dir: filepath.Clean(h.Dir), Base: h.Base, Space: h.Space, Kind: h.Kind}
}

// Equal reports whether h and o refer to the same artifact.
func (h Handle) Equal(o Handle) bool {
	return h.Key() == o.Key()
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.Base == ""
}

// IsNIFTI reports whether h is stored as NIFTI.
func (h Handle) IsNIFTI() bool {
	return h.Kind == KindNIFTI
}

// Prefix is the directory joined with the base name, the form AFNI
// programs take for -prefix.
func (h Handle) Prefix() string {
	return filepath.Join(h.Dir, h.Base)
}

// Name is the dataset name without directory: base+space for AFNI,
// base+ext for NIFTI.
func (h Handle) Name() string {
	if h.Kind == KindNIFTI {
		return h.Base + h.Ext
	}
	return h.Base + h.Space
}

// Input is the full dataset name passed to AFNI programs as input.
func (h Handle) Input() string {
	return filepath.Join(h.Dir, h.Name())
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	return h.Input()
}

// HeaderPath is the file whose presence proves the dataset exists.
func (h Handle) HeaderPath() string {
	if h.Kind == KindNIFTI {
		return h.Input()
	}
	return h.Input() + ".HEAD"
}

// Exists reports whether the dataset's header is present on fs.
func (h Handle) Exists(fs afero.Fs) bool {
	_, err := fs.Stat(h.HeaderPath())
	return err == nil
}

// Files lists the on-disk files of the dataset that exist on fs.
func (h Handle) Files(fs afero.Fs) []string {
	var candidates []string
	if h.Kind == KindNIFTI {
		candidates = []string{h.Input()}
	} else {
		in := h.Input()
		candidates = []string{in + ".HEAD", in + ".BRIK", in + ".BRIK.gz", in + ".BRIK.bz2"}
	}
	var out []string
	for _, c := range candidates {
		if _, err := fs.Stat(c); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// WithSuffix returns a handle whose base name has suffix appended.
func (h Handle) WithSuffix(suffix string) Handle {
	h.Base += suffix
	return h
}

// WithSpace returns a handle in space.
func (h Handle) WithSpace(space string) Handle {
	h.Space = space
	return h
}

// WithDir returns a handle in dir.
func (h Handle) WithDir(dir string) Handle {
	h.Dir = dir
	return h
}

// WithBase returns a handle with a new base name.
func (h Handle) WithBase(base string) Handle {
	h.Base = base
	return h
}

// AFNIOutput returns the AFNI dataset an AFNI program writes when given
// h's base name plus suffix as its prefix. An empty space keeps h's space,
// falling back to +orig for NIFTI inputs.
func (h Handle) AFNIOutput(suffix, space string) Handle {
	if space == "" {
		space = h.Space
	}
	if space == "" {
		space = SpaceOrig
	}
	return Handle{Dir: h.Dir, Base: h.Base + suffix, Space: space, Kind: KindAFNI}
}

// Abs returns h with an absolute directory.
func (h Handle) Abs() (Handle, error) {
	dir, err := filepath.Abs(h.Dir)
	if err != nil {
		return h, fmt.Errorf("absolute path of %s: %w", h.Dir, err)
	}
	h.Dir = dir
	return h, nil
}

// CopyTo copies every file of the dataset into dir on fs and returns the
// handle of the copy.
func (h Handle) CopyTo(fs afero.Fs, dir string) (Handle, error) {
	files := h.Files(fs)
	if len(files) == 0 {
		return Handle{}, fmt.Errorf("dataset %s: %w", h.Input(), os.ErrNotExist)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return Handle{}, fmt.Errorf("create %s: %w", dir, err)
	}
	for _, src := range files {
		if err := copyFile(fs, src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return Handle{}, err
		}
	}
	return h.WithDir(dir), nil
}

// Remove deletes every file of the dataset present on fs.
func (h Handle) Remove(fs afero.Fs) error {
	for _, f := range h.Files(fs) {
		if err := fs.Remove(f); err != nil {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// TrimSpace strips a trailing AFNI space tag from name.
func TrimSpace(name string) (string, string) {
	for _, sp := range []string{SpaceOrig, SpaceTLRC, SpaceACPC} {
		if base, ok := strings.CutSuffix(name, sp); ok {
			return base, sp
		}
	}
	return name, ""
}
