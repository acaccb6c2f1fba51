package stages

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/exec"
)

// touch creates the header files of hs on fs.
func touch(t *testing.T, fs afero.Fs, hs ...dataset.Handle) {
	t.Helper()
	for _, h := range hs {
		if err := fs.MkdirAll(h.Dir, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", h.Dir, err)
		}
		if err := afero.WriteFile(fs, h.HeaderPath(), []byte("hdr"), 0644); err != nil {
			t.Fatalf("write %s: %v", h.HeaderPath(), err)
		}
	}
}

// writes returns a Recorder hook that creates outs[program] whenever
// program runs, the way the real tool would.
func writes(fs afero.Fs, outs map[string][]dataset.Handle) func(exec.Call) error {
	return func(c exec.Call) error {
		if c.Shell {
			return nil
		}
		for _, h := range outs[c.Name] {
			if err := fs.MkdirAll(h.Dir, 0755); err != nil {
				return err
			}
			if err := afero.WriteFile(fs, h.HeaderPath(), []byte("hdr"), 0644); err != nil {
				return err
			}
		}
		return nil
	}
}

func newTestStager(opts Options) (*Stager, *exec.Recorder, afero.Fs) {
	fs := afero.NewMemMapFs()
	rec := exec.NewRecorder()
	return New(rec, fs, opts), rec, fs
}

func TestSkullStrip_Command(t *testing.T) {
	s, rec, fs := newTestStager(Options{SkullStrip: true})
	in := dataset.MustParse("/data/sub01_ac+orig")
	want := dataset.MustParse("/data/sub01_ac_ns+orig")
	rec.OnRun = writes(fs, map[string][]dataset.Handle{"3dSkullStrip": {want}})

	res, err := s.SkullStrip(context.Background(), in)
	if err != nil {
		t.Fatalf("SkullStrip failed: %v", err)
	}
	if !res.Output.Equal(want) {
		t.Errorf("output = %s, want %s", res.Output, want)
	}

	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	wantCmd := "3dSkullStrip -prefix /data/sub01_ac_ns -input /data/sub01_ac+orig -push_to_edge"
	if got := calls[0].String(); got != wantCmd {
		t.Errorf("command = %q, want %q", got, wantCmd)
	}
	if res.Command != wantCmd {
		t.Errorf("result command = %q, want %q", res.Command, wantCmd)
	}
}

func TestSkullStrip_Disabled(t *testing.T) {
	s, rec, _ := newTestStager(Options{})
	in := dataset.MustParse("/data/sub01_ac+orig")

	res, err := s.SkullStrip(context.Background(), in)
	if err != nil {
		t.Fatalf("SkullStrip failed: %v", err)
	}
	if !res.Skipped || !res.Output.Equal(in) {
		t.Errorf("disabled stage should pass the input through, got %+v", res)
	}
	if n := len(rec.Calls()); n != 0 {
		t.Errorf("expected no calls, got %d", n)
	}
}

func TestRun_OKToExistIsIdempotent(t *testing.T) {
	s, rec, fs := newTestStager(Options{OKToExist: true})
	in := dataset.MustParse("/data/sub01+orig")
	out := dataset.MustParse("/data/sub01_un+orig")
	rec.OnRun = writes(fs, map[string][]dataset.Handle{"3dUnifize": {out}})

	first, err := s.Unifize(context.Background(), in, SuffixUnifize)
	if err != nil {
		t.Fatalf("first Unifize failed: %v", err)
	}
	if first.Skipped {
		t.Error("first call should run")
	}
	before := len(rec.Calls())

	second, err := s.Unifize(context.Background(), in, SuffixUnifize)
	if err != nil {
		t.Fatalf("second Unifize failed: %v", err)
	}
	if got := len(rec.Calls()) - before; got != 0 {
		t.Errorf("second call ran %d commands, want 0", got)
	}
	if !second.Skipped {
		t.Error("second call should be skipped")
	}
	if !second.Output.Equal(first.Output) {
		t.Errorf("outputs differ: %s vs %s", first.Output, second.Output)
	}
}

func TestRun_ExistsError(t *testing.T) {
	s, rec, fs := newTestStager(Options{})
	in := dataset.MustParse("/data/sub01+orig")
	touch(t, fs, dataset.MustParse("/data/sub01_un+orig"))

	_, err := s.Unifize(context.Background(), in, SuffixUnifize)
	var ee *ExistsError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExistsError, got %v", err)
	}
	if ee.Output != "/data/sub01_un+orig" {
		t.Errorf("unexpected output %q", ee.Output)
	}
	if n := len(rec.Calls()); n != 0 {
		t.Errorf("expected no calls, got %d", n)
	}
}

func TestRun_RewriteAddsOverwrite(t *testing.T) {
	s, rec, fs := newTestStager(Options{Rewrite: true})
	in := dataset.MustParse("/data/sub01+orig")
	touch(t, fs, dataset.MustParse("/data/sub01_un+orig"))

	if _, err := s.Unifize(context.Background(), in, SuffixUnifize); err != nil {
		t.Fatalf("Unifize failed: %v", err)
	}
	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	want := "3dUnifize -overwrite -gm -clfrac 0.4 -Urad 30 -prefix /data/sub01_un -input /data/sub01+orig"
	if got := calls[0].String(); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestRun_MissingOutput(t *testing.T) {
	s, _, _ := newTestStager(Options{})
	in := dataset.MustParse("/data/sub01+orig")

	_, err := s.Unifize(context.Background(), in, SuffixUnifize)
	var ae *AlignmentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AlignmentError, got %v", err)
	}
	if !errors.Is(err, ErrNoOutput) {
		t.Errorf("expected ErrNoOutput, got %v", ae.Err)
	}
	if !strings.Contains(ae.Command, "3dUnifize") {
		t.Errorf("error should carry the command, got %q", ae.Command)
	}
}

func TestRun_RunnerFailure(t *testing.T) {
	s, rec, _ := newTestStager(Options{SkullStrip: true})
	boom := errors.New("exit status 1")
	rec.FailOn("3dSkullStrip", boom)

	_, err := s.SkullStrip(context.Background(), dataset.MustParse("/data/sub01+orig"))
	var ae *AlignmentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AlignmentError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected runner error to be wrapped, got %v", err)
	}
	if ae.Stage != "skullstrip" {
		t.Errorf("stage = %q, want skullstrip", ae.Stage)
	}
}

func TestRun_DryRunSkipsVerification(t *testing.T) {
	s, rec, _ := newTestStager(Options{DryRun: true, SkullStrip: true})

	res, err := s.SkullStrip(context.Background(), dataset.MustParse("/data/sub01+orig"))
	if err != nil {
		t.Fatalf("dry run should not require outputs: %v", err)
	}
	if res.Skipped {
		t.Error("dry run should still record the command")
	}
	if n := len(rec.Calls()); n != 1 {
		t.Errorf("expected 1 recorded call, got %d", n)
	}
}

func TestToAFNI(t *testing.T) {
	s, rec, _ := newTestStager(Options{DryRun: true})

	res, err := s.ToAFNI(context.Background(), dataset.MustParse("/data/sub01.nii.gz"))
	if err != nil {
		t.Fatalf("ToAFNI failed: %v", err)
	}
	if got := res.Output.Input(); got != "/data/sub01+orig" {
		t.Errorf("output = %q, want /data/sub01+orig", got)
	}
	if got := rec.Calls()[0].String(); got != "3dcopy /data/sub01.nii.gz /data/sub01" {
		t.Errorf("command = %q", got)
	}

	rec.Reset()
	afni := dataset.MustParse("/data/sub02+orig")
	res, err = s.ToAFNI(context.Background(), afni)
	if err != nil || !res.Output.Equal(afni) {
		t.Errorf("AFNI input should pass through, got %+v, %v", res, err)
	}
	if n := len(rec.Calls()); n != 0 {
		t.Errorf("expected no calls for AFNI input, got %d", n)
	}
}

func TestAlignCenters(t *testing.T) {
	base := dataset.MustParse("/tmpl/MNI+tlrc")
	in := dataset.MustParse("/data/sub01+orig")

	tests := []struct {
		name   string
		center bool
		want   []string
	}{
		{"copy only", false, []string{"3dcopy /data/sub01+orig /data/sub01_ac"}},
		{"copy and center", true, []string{
			"3dcopy /data/sub01+orig /data/sub01_ac",
			"@Align_Centers -base /tmpl/MNI+tlrc -dset /data/sub01_ac+orig -no_cp",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec, _ := newTestStager(Options{DryRun: true, Center: tt.center})
			res, err := s.AlignCenters(context.Background(), in, base)
			if err != nil {
				t.Fatalf("AlignCenters failed: %v", err)
			}
			if res.Output.Input() != "/data/sub01_ac+orig" {
				t.Errorf("output = %s", res.Output)
			}
			calls := rec.Calls()
			if len(calls) != len(tt.want) {
				t.Fatalf("expected %d calls, got %d", len(tt.want), len(calls))
			}
			for i, w := range tt.want {
				if got := calls[i].String(); got != w {
					t.Errorf("call %d = %q, want %q", i, got, w)
				}
			}
		})
	}
}

func TestAutomask(t *testing.T) {
	s, rec, _ := newTestStager(Options{DryRun: true})
	if _, err := s.Automask(context.Background(), dataset.MustParse("/data/sub01+orig")); err != nil {
		t.Fatalf("Automask failed: %v", err)
	}
	want := "3dAutomask -dilate 3 -apply_prefix /data/sub01_am /data/sub01+orig"
	if got := rec.Calls()[0].String(); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestProbe_MemoizesAndDefaults(t *testing.T) {
	s, rec, _ := newTestStager(Options{})
	rec.SetOutput("3dAttribute", "-0.9 0.9 1.2\n")
	d := dataset.MustParse("/data/sub01+tlrc")

	for i := 0; i < 3; i++ {
		m, err := s.MinDim(context.Background(), d)
		if err != nil {
			t.Fatalf("MinDim failed: %v", err)
		}
		if m != 0.9 {
			t.Errorf("MinDim = %v, want 0.9", m)
		}
	}
	if n := rec.Count("3dAttribute"); n != 1 {
		t.Errorf("probe ran %d times, want 1", n)
	}

	dry, dryRec, _ := newTestStager(Options{DryRun: true})
	m, err := dry.MinDim(context.Background(), d)
	if err != nil {
		t.Fatalf("dry MinDim failed: %v", err)
	}
	if m != 1 {
		t.Errorf("dry-run MinDim = %v, want 1 from default text", m)
	}
	if n := dryRec.Count("3dAttribute"); n != 1 {
		t.Errorf("dry run should still record the probe, got %d calls", n)
	}
}

func TestProbe_EmptyOutputFailsOutsideDryRun(t *testing.T) {
	s, _, _ := newTestStager(Options{})
	if _, err := s.MinDim(context.Background(), dataset.MustParse("/data/sub01+tlrc")); err == nil {
		t.Error("expected error for empty probe output")
	}
}

func TestMinAbs(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1 0 -1", 1, false},
		{"0 0 0", 1, false},
		{"-2.5 1.25 3", 1.25, false},
		{"", 0, true},
		{"1 x 2", 0, true},
	}
	for _, tt := range tests {
		got, err := minAbs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("minAbs(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("minAbs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUpsample(t *testing.T) {
	s, rec, fs := newTestStager(Options{})
	rec.SetOutput("3dAttribute", "1.0 -1.0 1.0")
	in := dataset.MustParse("/data/tp3_mean_nl1_rsz+tlrc")
	out := dataset.MustParse("/data/tp3_mean_nl1_rsz_us+tlrc")
	rec.OnRun = writes(fs, map[string][]dataset.Handle{"3dresample": {out}})

	res, err := s.Upsample(context.Background(), in, SuffixUpsample)
	if err != nil {
		t.Fatalf("Upsample failed: %v", err)
	}
	if !res.Output.Equal(out) {
		t.Errorf("output = %s, want %s", res.Output, out)
	}
	want := "3dresample -dxyz 0.5 0.5 0.5 -prefix /data/tp3_mean_nl1_rsz_us -input /data/tp3_mean_nl1_rsz+tlrc"
	if got := res.Command; got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestResample(t *testing.T) {
	s, rec, _ := newTestStager(Options{DryRun: true})
	warp := dataset.MustParse("/data/sub01_affx_nl0_WARP_rsz+tlrc")
	master := dataset.MustParse("/data/tp2_mean_nl0_rsz_us+tlrc")

	res, err := s.Resample(context.Background(), warp, master, SuffixUpsample)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if res.Output.Base != "sub01_affx_nl0_WARP_rsz_us" {
		t.Errorf("output base = %q", res.Output.Base)
	}
	want := "3dresample -master /data/tp2_mean_nl0_rsz_us+tlrc -prefix /data/sub01_affx_nl0_WARP_rsz_us -input /data/sub01_affx_nl0_WARP_rsz+tlrc"
	if got := rec.Calls()[0].String(); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestAnisoSmooth(t *testing.T) {
	s, rec, _ := newTestStager(Options{DryRun: true})
	in := dataset.MustParse("/data/tp2_mean_nl0_rsz+tlrc")

	if _, err := s.AnisoSmooth(context.Background(), in, 0); err == nil {
		t.Error("expected error for zero iterations")
	}

	res, err := s.AnisoSmooth(context.Background(), in, 3)
	if err != nil {
		t.Fatalf("AnisoSmooth failed: %v", err)
	}
	if res.Output.Base != "tp2_mean_nl0_rsz_as" {
		t.Errorf("output base = %q", res.Output.Base)
	}
	want := "3danisosmooth -3D -iters 3 -noneg -prefix /data/tp2_mean_nl0_rsz_as -mask /data/tp2_mean_nl0_rsz+tlrc /data/tp2_mean_nl0_rsz+tlrc"
	if got := rec.Calls()[0].String(); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}
