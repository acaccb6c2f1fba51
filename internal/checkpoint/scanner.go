// Package checkpoint discovers intermediate warps left on disk by an
// interrupted nonlinear alignment, so the alignment can restart from the
// highest completed level instead of from scratch.
//
// 3dQwarp run with -saveall writes one warp per completed patch level:
//
//	<prefix>_Lev<k>.<dims>_WARPsave<space>.HEAD
//
// The scanner picks the numerically highest k. Modification times are never
// consulted, since the newest file may be the partially written one.
package checkpoint

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/dataset"
)

var debugLog = func(format string, args ...interface{}) {}

// SetDebugLog sets the debug logging function for the package.
func SetDebugLog(fn func(format string, args ...interface{})) {
	if fn == nil {
		fn = func(string, ...interface{}) {}
	}
	debugLog = fn
}

// ParseError reports a file that looks like a checkpoint marker but whose
// level cannot be read. Scans skip such files.
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("checkpoint marker %q: %s", e.Name, e.Reason)
}

// Marker is one parsed checkpoint file.
type Marker struct {
	// Level is the completed patch level embedded in the name.
	Level int
	// Dims is the grid size text following the level, e.g. 0145x0173x0149.
	Dims string
	// Warp is the saved warp dataset.
	Warp dataset.Handle
}

// ResumeLevel is the level the aligner should start from: one past the
// last completed level.
func (m Marker) ResumeLevel() int {
	return m.Level + 1
}

// MarkerTag marks a saved warp in a file name.
const MarkerTag = "_WARPsave"

var markerPattern = regexp.MustCompile(`^_Lev([^.]*)\.(.+)$`)

// ParseMarker parses name (a file name, without directory) as a checkpoint
// marker for the dataset base name base in space. It returns a *ParseError
// when name carries the marker shape but not a valid level.
func ParseMarker(name, base, space string) (Marker, error) {
	for _, ext := range []string{".HEAD", ".BRIK.gz", ".BRIK.bz2", ".BRIK"} {
		if trimmed, ok := strings.CutSuffix(name, ext); ok {
			name = trimmed
			break
		}
	}
	rest, ok := strings.CutPrefix(name, base)
	if !ok {
		return Marker{}, &ParseError{Name: name, Reason: "prefix mismatch"}
	}
	rest, ok = strings.CutSuffix(rest, MarkerTag+space)
	if !ok {
		return Marker{}, &ParseError{Name: name, Reason: "missing " + MarkerTag + space + " suffix"}
	}

	m := markerPattern.FindStringSubmatch(rest)
	if m == nil {
		return Marker{}, &ParseError{Name: name, Reason: "missing _Lev<k>.<dims> marker"}
	}
	level, err := strconv.Atoi(m[1])
	if err != nil || level < 0 {
		return Marker{}, &ParseError{Name: name, Reason: fmt.Sprintf("level %q is not a non-negative integer", m[1])}
	}
	return Marker{
		Level: level,
		Dims:  m[2],
		Warp:  dataset.New("", strings.TrimSuffix(name, space), space),
	}, nil
}

// Latest returns the marker with the highest level among names. Malformed
// names are skipped. The bool is false when no valid marker exists.
func Latest(names []string, base, space string) (Marker, bool) {
	var (
		best  Marker
		found bool
	)
	for _, n := range names {
		m, err := ParseMarker(filepath.Base(n), base, space)
		if err != nil {
			debugLog("[checkpoint] skipping %s: %v", n, err)
			continue
		}
		if !found || m.Level > best.Level {
			best, found = m, true
		}
	}
	return best, found
}

// Scanner finds checkpoint markers on a filesystem.
type Scanner struct {
	fs afero.Fs
}

// NewScanner creates a Scanner over fs.
func NewScanner(fs afero.Fs) *Scanner {
	return &Scanner{fs: fs}
}

// Pattern returns the glob matching the checkpoint headers of output.
func Pattern(output dataset.Handle) string {
	return output.Prefix() + "_Lev*.*" + MarkerTag + output.Space + ".HEAD"
}

// Scan looks for checkpoints of the aligner output named by output. The
// returned marker's warp lives in output's directory.
func (s *Scanner) Scan(output dataset.Handle) (Marker, bool, error) {
	names, err := afero.Glob(s.fs, Pattern(output))
	if err != nil {
		return Marker{}, false, fmt.Errorf("glob checkpoints for %s: %w", output.Prefix(), err)
	}
	m, ok := Latest(names, output.Base, output.Space)
	if !ok {
		return Marker{}, false, nil
	}
	m.Warp = m.Warp.WithDir(output.Dir)
	debugLog("[checkpoint] %s: resuming after level %d from %s", output.Base, m.Level, m.Warp.Input())
	return m, true, nil
}

// ScanDir reports the latest checkpoint for every output prefix with saved
// warps in dir, keyed by prefix base name.
func (s *Scanner) ScanDir(dir string) (map[string]Marker, error) {
	names, err := afero.Glob(s.fs, filepath.Join(dir, "*_Lev*"+MarkerTag+"*.HEAD"))
	if err != nil {
		return nil, fmt.Errorf("glob checkpoints in %s: %w", dir, err)
	}
	groups := make(map[string][]string)
	spaces := make(map[string]string)
	for _, n := range names {
		name := strings.TrimSuffix(filepath.Base(n), ".HEAD")
		idx := strings.LastIndex(name, "_Lev")
		if idx <= 0 {
			continue
		}
		base := name[:idx]
		_, space := dataset.TrimSpace(name)
		groups[base] = append(groups[base], n)
		spaces[base] = space
	}

	out := make(map[string]Marker, len(groups))
	for base, group := range groups {
		if m, ok := Latest(group, base, spaces[base]); ok {
			m.Warp = m.Warp.WithDir(dir)
			out[base] = m
		}
	}
	return out, nil
}
