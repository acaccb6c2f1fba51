package exec

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "plain args",
			cmd:  Cmd("3dSkullStrip", "-prefix", "/d/s_ns", "-input", "/d/s+orig", "-push_to_edge"),
			want: "3dSkullStrip -prefix /d/s_ns -input /d/s+orig -push_to_edge",
		},
		{
			name: "quoted arg",
			cmd:  Cmd("3dNwarpCat", "-warp1", "INV(/d/w+tlrc)", "-prefix", "/d/w_inv"),
			want: `3dNwarpCat -warp1 INV\(/d/w+tlrc\) -prefix /d/w_inv`,
		},
		{
			name: "working dir",
			cmd:  Cmd("3dcopy", "a+orig", "b").In("/out"),
			want: "cd /out; 3dcopy a+orig b",
		},
		{
			name: "shell line kept verbatim",
			cmd:  ShellCmd("rm -f /d/x*_WARPsave+tlrc.*"),
			want: "rm -f /d/x*_WARPsave+tlrc.*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScript_String(t *testing.T) {
	s := Script{
		Cmd("@auto_tlrc", "-base", "/b+tlrc").In("/out"),
		ShellCmd("rm -f x").In("/out"),
		Cmd("3dAllineate", "-prefix", "y").In("/out"),
	}
	got := s.String()
	want := "cd /out; @auto_tlrc -base /b+tlrc; rm -f x; 3dAllineate -prefix y"
	if got != want {
		t.Errorf("Script.String() = %q, want %q", got, want)
	}
}

func TestRecorder_RecordsTaggedCalls(t *testing.T) {
	r := NewRecorder()
	ctx := WithTaskID(context.Background(), "rigid/mean")

	if _, err := Cmd("3dMean", "-prefix", "m").Run(ctx, r); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := ShellCmd("rm -f tmp*").Run(context.Background(), r); err != nil {
		t.Fatalf("RunShell() error = %v", err)
	}

	if got := len(r.Calls()); got != 2 {
		t.Fatalf("len(Calls()) = %d, want 2", got)
	}
	tagged := r.CallsFor("rigid/mean")
	if len(tagged) != 1 || tagged[0].Name != "3dMean" {
		t.Errorf("CallsFor(rigid/mean) = %+v, want one 3dMean call", tagged)
	}
	if r.Count("3dMean") != 1 {
		t.Errorf("Count(3dMean) = %d, want 1", r.Count("3dMean"))
	}
	if r.Count("rm -f tmp*") != 0 {
		t.Error("Count should ignore shell calls")
	}
}

func TestRecorder_OutputsAndFailures(t *testing.T) {
	r := NewRecorder()
	r.SetOutput("3dAttribute", "0.9 -0.9 1.2\n")
	boom := errors.New("boom")
	r.FailOn("3dQwarp", boom)

	out, err := r.Run(context.Background(), "", "3dAttribute", "DELTA", "x+orig")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(string(out), "0.9") {
		t.Errorf("output = %q, want canned text", out)
	}

	if _, err := r.Run(context.Background(), "", "3dQwarp"); !errors.Is(err, boom) {
		t.Errorf("Run(3dQwarp) error = %v, want %v", err, boom)
	}
}

func TestRecorder_OnRunHook(t *testing.T) {
	r := NewRecorder()
	var seen []string
	r.OnRun = func(c Call) error {
		seen = append(seen, c.Name)
		return nil
	}
	r.Run(context.Background(), "", "3dcopy", "a", "b")
	if len(seen) != 1 || seen[0] != "3dcopy" {
		t.Errorf("hook saw %v, want [3dcopy]", seen)
	}

	r.Reset()
	if len(r.Calls()) != 0 {
		t.Error("Reset() should drop calls")
	}
}
