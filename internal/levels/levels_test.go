package levels

import (
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	want := []struct {
		opts   string
		inilev int
		suffix string
		iniw   int
	}{
		{"-blur 0 9 -minpatch 101 -lite", 0, "_nl0", None},
		{"-blur 1 6 -minpatch 49 -lite", 2, "_nl1", 0},
		{"-blur 0 4 -minpatch 23 -lite", 5, "_nl2", 1},
		{"-blur 0 -2 -minpatch 13 -lite", 7, "_nl3", 2},
		{"-blur 0 -2 -minpatch 9 -lite", 9, "_nl4", 3},
	}

	all := All()
	if len(all) != len(want) {
		t.Fatalf("len(All()) = %d, want %d", len(all), len(want))
	}
	for k, w := range want {
		l := all[k]
		if got := strings.Join(l.QwarpOpts, " "); got != w.opts {
			t.Errorf("level %d opts = %q, want %q", k, got, w.opts)
		}
		if l.Inilev != w.inilev || l.Suffix != w.suffix || l.IniWarpLevel != w.iniw {
			t.Errorf("level %d = %+v", k, l)
		}
		if l.Index != k {
			t.Errorf("level %d has Index %d", k, l.Index)
		}
	}
}

func TestGet_CopiesOptions(t *testing.T) {
	l, _ := Get(0)
	l.QwarpOpts[0] = "-mutated"
	again, _ := Get(0)
	if again.QwarpOpts[0] != "-blur" {
		t.Error("Get() must not expose the shared table")
	}
	if _, err := Get(5); err == nil {
		t.Error("Get(5) should fail")
	}
}

func TestLevel_Names(t *testing.T) {
	l, _ := Get(2)
	if l.TemplatePrefix() != "tp4_" {
		t.Errorf("TemplatePrefix() = %q, want tp4_", l.TemplatePrefix())
	}
	if l.WarpSuffix() != "_nl2_WARP" {
		t.Errorf("WarpSuffix() = %q", l.WarpSuffix())
	}
	if l.Phase() != "nl2" {
		t.Errorf("Phase() = %q", l.Phase())
	}
}

func TestSequence(t *testing.T) {
	steps, err := Sequence(None, 2, 3)
	if err != nil {
		t.Fatalf("Sequence() error = %v", err)
	}
	if len(steps) != 5 {
		t.Fatalf("len(steps) = %d, want 5", len(steps))
	}
	for _, s := range steps {
		if s.Upsample != (s.Index == 2) {
			t.Errorf("level %d Upsample = %v", s.Index, s.Upsample)
		}
		if s.FindTypical != (s.Index == 3) {
			t.Errorf("level %d FindTypical = %v", s.Index, s.FindTypical)
		}
	}

	partial, err := Sequence(3, None, None)
	if err != nil {
		t.Fatalf("Sequence(3) error = %v", err)
	}
	if len(partial) != 2 || partial[0].Index != 3 || partial[1].Index != 4 {
		t.Errorf("Sequence(3) = %+v, want levels 3 and 4", partial)
	}
}

func TestSequence_RejectsOutOfRange(t *testing.T) {
	cases := [][3]int{{5, None, None}, {0, 7, None}, {0, None, -2}}
	for _, c := range cases {
		if _, err := Sequence(c[0], c[1], c[2]); err == nil {
			t.Errorf("Sequence(%v) should fail", c)
		}
	}
}
