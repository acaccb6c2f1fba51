// Package tui renders live progress of a template run in the terminal.
//
// The view is fed by executor events:
//
//	program, app := tui.NewProgram(plan.Tasks(), controls)
//	go tui.Forward(ctx, program, emitter.Events())
//	go func() {
//	    summary, err := exec.Run(ctx)
//	    program.Send(tui.DoneMsg{Summary: summary, Err: err})
//	}()
//	program.Run()
//
// Each phase (prep, rigid, affine, nl0..nl4) gets a progress bar. The
// footer carries the done/failed/blocked counters, and the last failures
// are listed under the bars. Keys p, r and s pause, resume and stop the
// run; q leaves the view.
package tui
