// Package version reports the meanbrain version and that of the AFNI
// installation it drives.
package version

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/meanbrain/internal/exec"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

var afniVersionPattern = regexp.MustCompile(`AFNI_\d+\.\d+\.\d+`)

// ErrUnknownAFNI is returned when afni -ver prints no version tag.
var ErrUnknownAFNI = errors.New("no AFNI version in output")

// AFNI returns the version tag of the installed AFNI, e.g. AFNI_24.0.05.
func AFNI(ctx context.Context, r exec.CommandRunner) (string, error) {
	out, err := exec.Cmd("afni", "-ver").Run(ctx, r)
	if err != nil {
		return "", fmt.Errorf("afni -ver: %w", err)
	}
	v := afniVersionPattern.FindString(string(out))
	if v == "" {
		return "", ErrUnknownAFNI
	}
	return v, nil
}
