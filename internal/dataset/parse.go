package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
)

var afniFileSuffixes = []string{".HEAD", ".BRIK.gz", ".BRIK.bz2", ".BRIK"}

// Parse builds a handle from a dataset path. Accepted forms are
// name+orig, name+tlrc.HEAD, name+orig.BRIK(.gz), name.nii and name.nii.gz.
func Parse(path string) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return Handle{}, fmt.Errorf("empty dataset name")
	}
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	for _, ext := range []string{".nii.gz", ".nii"} {
		if base, ok := strings.CutSuffix(name, ext); ok {
			if base == "" {
				return Handle{}, fmt.Errorf("dataset %q: empty base name", path)
			}
			return Handle{Dir: dir, Base: base, Kind: KindNIFTI, Ext: ext}, nil
		}
	}

	for _, ext := range afniFileSuffixes {
		if trimmed, ok := strings.CutSuffix(name, ext); ok {
			name = trimmed
			break
		}
	}
	base, space := TrimSpace(name)
	if space == "" {
		return Handle{}, fmt.Errorf("dataset %q: expected +orig, +tlrc, +acpc or a .nii/.nii.gz name", path)
	}
	if base == "" {
		return Handle{}, fmt.Errorf("dataset %q: empty base name", path)
	}
	return Handle{Dir: dir, Base: base, Space: space, Kind: KindAFNI}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(path string) Handle {
	h, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return h
}
