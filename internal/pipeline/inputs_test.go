package pipeline

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/config"
)

func writeFiles(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := afero.WriteFile(fs, p, []byte("data"), 0644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

func TestStageInputs_Copies(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/src/sub01+orig.HEAD", "/src/sub01+orig.BRIK.gz", "/src/sub02.nii.gz")

	got, err := StageInputs(fs, []string{"/src/sub01+orig", "/src/sub02.nii.gz"}, "/out", false)
	if err != nil {
		t.Fatalf("StageInputs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("StageInputs() = %d handles, want 2", len(got))
	}
	if got[0].Input() != "/out/input_data/sub01+orig" {
		t.Errorf("got[0] = %q", got[0].Input())
	}
	if got[1].Input() != "/out/input_data/sub02.nii.gz" {
		t.Errorf("got[1] = %q", got[1].Input())
	}
	for _, p := range []string{"/out/input_data/sub01+orig.HEAD", "/out/input_data/sub01+orig.BRIK.gz", "/out/input_data/sub02.nii.gz"} {
		if ok, _ := afero.Exists(fs, p); !ok {
			t.Errorf("%s was not copied", p)
		}
	}
}

func TestStageInputs_KeepsExistingCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/src/sub01+orig.HEAD")
	if err := afero.WriteFile(fs, "/out/input_data/sub01+orig.HEAD", []byte("staged"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := StageInputs(fs, []string{"/src/sub01+orig"}, "/out", false); err != nil {
		t.Fatalf("StageInputs() error = %v", err)
	}
	data, _ := afero.ReadFile(fs, "/out/input_data/sub01+orig.HEAD")
	if string(data) != "staged" {
		t.Errorf("existing copy was overwritten: %q", data)
	}
}

func TestStageInputs_DryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	got, err := StageInputs(fs, []string{"/missing/sub01+orig"}, "/out", true)
	if err != nil {
		t.Fatalf("StageInputs() error = %v", err)
	}
	if got[0].Dir != "/out/input_data" {
		t.Errorf("Dir = %q, want /out/input_data", got[0].Dir)
	}
	if ok, _ := afero.DirExists(fs, "/out/input_data"); ok {
		t.Error("dry run created the input directory")
	}
}

func TestStageInputs_Errors(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{"empty", nil},
		{"duplicate file name", []string{"/a/sub01+orig", "/b/sub01+orig"}},
		{"duplicate subject", []string{"/a/sub01+orig", "/b/sub01.nii"}},
		{"bad name", []string{"/a/sub01"}},
		{"missing source", []string{"/nowhere/sub01+orig"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StageInputs(afero.NewMemMapFs(), tt.paths, "/out", false)
			var ce *config.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("StageInputs() error = %v, want *ConfigurationError", err)
			}
			if ce.Field != "inputs.dsets" {
				t.Errorf("Field = %q, want inputs.dsets", ce.Field)
			}
		})
	}
}

func TestParseOptional(t *testing.T) {
	h, err := ParseOptional("inputs.resize_base", "")
	if err != nil || !h.IsZero() {
		t.Errorf("ParseOptional(\"\") = (%v, %v), want zero handle", h, err)
	}
	if _, err := ParseOptional("inputs.resize_base", "bad"); err == nil {
		t.Error("ParseOptional(bad) should fail")
	}
	all, err := ParseAll("inputs.warpsets", []string{"/w/a_WARP+tlrc", "/w/b_WARP+tlrc"})
	if err != nil || len(all) != 2 {
		t.Errorf("ParseAll() = (%v, %v)", all, err)
	}
}
