package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/meanbrain/internal/aggregate"
	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/exec"
	"github.com/ShayCichocki/meanbrain/internal/graph"
	"github.com/ShayCichocki/meanbrain/internal/levels"
	"github.com/ShayCichocki/meanbrain/internal/stages"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// ref is the deferred output of a task: the dataset it will produce and
// the task producing it. An empty task means the dataset exists before
// the run starts.
type ref struct {
	handle dataset.Handle
	task   string
	// warp selects the task's warp output instead of its primary output.
	warp bool
}

func (r ref) IsZero() bool {
	return r.handle.IsZero()
}

type runFunc func(ctx context.Context) (stages.Result, error)

// Outputs are the final products of a plan.
type Outputs struct {
	// Template is the final group template.
	Template dataset.Handle
	// TemplateTask produces Template, empty when no task does.
	TemplateTask string
	// Brains are the subjects aligned by the last stage that ran.
	Brains []dataset.Handle
	// Warps are the resized per-subject warps of the last nonlinear level.
	Warps []dataset.Handle
}

// Plan is a built task graph. Nothing runs until Run is called for a task,
// and a task must only run after every task it depends on succeeded.
type Plan struct {
	mu      sync.Mutex
	tasks   []*models.Task
	index   map[string]*models.Task
	runs    map[string]runFunc
	results map[string]stages.Result
	values  map[string]float64

	steps    []levels.Step
	subjects []string
	outputs  Outputs
	outRefs  struct {
		template ref
		brains   []ref
		warps    []ref
	}
}

func newPlan() *Plan {
	return &Plan{
		index:   make(map[string]*models.Task),
		runs:    make(map[string]runFunc),
		results: make(map[string]stages.Result),
		values:  make(map[string]float64),
	}
}

// Tasks returns the tasks in build order.
func (p *Plan) Tasks() []*models.Task {
	return p.tasks
}

// Task returns the task with id, or nil.
func (p *Plan) Task(id string) *models.Task {
	return p.index[id]
}

// Levels returns the nonlinear level sequence of the plan.
func (p *Plan) Levels() []levels.Step {
	return p.steps
}

// Subjects returns the subject keys in input order.
func (p *Plan) Subjects() []string {
	return p.subjects
}

// Run executes task id. Commands issued by the task are tagged with its ID
// through the context.
func (p *Plan) Run(ctx context.Context, id string) error {
	run, ok := p.runs[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	res, err := run(exec.WithTaskID(ctx, id))

	p.mu.Lock()
	defer p.mu.Unlock()
	task := p.index[id]
	if res.Command != "" {
		task.Command = res.Command
	}
	if err != nil {
		return err
	}
	p.results[id] = res
	if !res.Output.IsZero() {
		task.Output = res.Output.Input()
	}
	if v, ok := p.values[id]; ok {
		task.Value = v
	}
	return nil
}

// Result returns the stage result of a completed task.
func (p *Plan) Result(id string) (stages.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.results[id]
	return r, ok
}

// Outputs returns the final products. Handles reflect task results once
// the producing tasks have run.
func (p *Plan) Outputs() Outputs {
	out := Outputs{
		Template:     p.resolve(p.outRefs.template),
		TemplateTask: p.outRefs.template.task,
	}
	for _, r := range p.outRefs.brains {
		out.Brains = append(out.Brains, p.resolve(r))
	}
	for _, r := range p.outRefs.warps {
		out.Warps = append(out.Warps, p.resolve(r))
	}
	return out
}

// resolve returns the dataset behind r: the producing task's actual
// output once it ran, the expected output before.
func (p *Plan) resolve(r ref) dataset.Handle {
	if r.task == "" {
		return r.handle
	}
	p.mu.Lock()
	res, ok := p.results[r.task]
	p.mu.Unlock()
	if !ok {
		return r.handle
	}
	if r.warp {
		if res.Warp.IsZero() {
			return r.handle
		}
		return res.Warp
	}
	if res.Output.IsZero() {
		return r.handle
	}
	return res.Output
}

func (p *Plan) resolveAll(rs []ref) []dataset.Handle {
	out := make([]dataset.Handle, len(rs))
	for i, r := range rs {
		out[i] = p.resolve(r)
	}
	return out
}

func (p *Plan) setValue(id string, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[id] = v
}

// distances collects the deformation distances computed by ids, in order.
func (p *Plan) distances(ids, subjects []string, brains, warps []dataset.Handle) ([]aggregate.Distance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]aggregate.Distance, 0, len(ids))
	for i, id := range ids {
		v, ok := p.values[id]
		if !ok {
			return nil, fmt.Errorf("distance %s has not been computed", id)
		}
		out = append(out, aggregate.Distance{
			Subject: subjects[i],
			Brain:   brains[i],
			Warp:    warps[i],
			Value:   v,
		})
	}
	return out, nil
}

// add registers a task producing out, depending on the producers of deps.
func (p *Plan) add(t *models.Task, out dataset.Handle, run runFunc, deps ...ref) ref {
	seen := make(map[string]bool)
	for _, d := range deps {
		if d.task == "" || seen[d.task] {
			continue
		}
		seen[d.task] = true
		t.DependsOn = append(t.DependsOn, d.task)
	}
	t.Status = models.TaskStatusPending
	t.CreatedAt = time.Now()
	if !out.IsZero() {
		t.Output = out.Input()
	}
	p.tasks = append(p.tasks, t)
	p.index[t.ID] = t
	p.runs[t.ID] = run
	return ref{handle: out, task: t.ID}
}

// Restore carries recorded state of tasks finished in an earlier run into
// the plan: command text, output name and computed values. Tasks unknown
// to the plan are ignored.
func (p *Plan) Restore(done []*models.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range done {
		t, ok := p.index[d.ID]
		if !ok {
			continue
		}
		t.Status = models.TaskStatusDone
		t.Command = d.Command
		if d.Output != "" {
			t.Output = d.Output
		}
		if d.Kind == models.KindDistance {
			p.values[d.ID] = d.Value
			t.Value = d.Value
		}
	}
}

// RunSequential runs every task one at a time in dependency order and
// returns that order. It stops at the first failure. Dry runs and the plan
// listing use it; real runs go through the executor.
func (p *Plan) RunSequential(ctx context.Context) ([]string, error) {
	g := graph.New()
	if err := g.Build(p.tasks); err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	for i, id := range order {
		if err := ctx.Err(); err != nil {
			return order[:i], err
		}
		if err := p.Run(ctx, id); err != nil {
			return order[:i], fmt.Errorf("task %s: %w", id, err)
		}
		p.index[id].Status = models.TaskStatusDone
	}
	return order, nil
}
