// Package pipeline builds the template construction task graph: per-subject
// preparation and alignment tasks joined by group mean barriers, level by
// level. Building runs nothing; each task's work happens in Plan.Run.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/ShayCichocki/meanbrain/internal/aggregate"
	"github.com/ShayCichocki/meanbrain/internal/config"
	"github.com/ShayCichocki/meanbrain/internal/dataset"
	"github.com/ShayCichocki/meanbrain/internal/levels"
	"github.com/ShayCichocki/meanbrain/internal/stages"
	"github.com/ShayCichocki/meanbrain/pkg/models"
)

// Inputs are the datasets a plan starts from.
type Inputs struct {
	// Subjects are the input datasets, already staged.
	Subjects []dataset.Handle
	// Base is the initial registration target.
	Base dataset.Handle
	// ResizeBase, when set, replaces the affine mean as the target level
	// templates are resized onto.
	ResizeBase dataset.Handle
	// Warps optionally seed the first nonlinear level, one per subject.
	Warps []dataset.Handle
	// OutDir receives the typical subject copy.
	OutDir string
}

// Builder turns a configuration into a Plan.
type Builder struct {
	cfg    config.Pipeline
	stager *stages.Stager
	agg    *aggregate.Aggregator
}

// NewBuilder creates a Builder.
func NewBuilder(cfg config.Pipeline, s *stages.Stager, agg *aggregate.Aggregator) *Builder {
	return &Builder{cfg: cfg, stager: s, agg: agg}
}

// mode is the set of phases a configuration enables.
type mode struct {
	prep, rigid, affine, nonlinear bool
	// nlOnly starts from already aligned brains with the base as target.
	nlOnly bool
}

func (b *Builder) mode() mode {
	c := b.cfg
	nlOnly := c.NLOnly || c.NLLevelOnly != levels.None
	m := mode{nlOnly: nlOnly}
	if nlOnly {
		m.nonlinear = true
		return m
	}
	m.prep = !c.AffineOnly
	m.rigid = m.prep && !c.PrepOnly && c.Rigid && c.Affine
	m.affine = !c.PrepOnly && !c.RigidOnly && c.Affine
	m.nonlinear = c.Nonlinear && !c.PrepOnly && !c.RigidOnly && !c.AffineOnly
	return m
}

// Build constructs the task graph for in.
func (b *Builder) Build(in Inputs) (*Plan, error) {
	if len(in.Subjects) == 0 {
		return nil, config.Errorf("inputs.dsets", "no subjects")
	}
	if in.Base.IsZero() {
		return nil, config.Errorf("inputs.init_base", "no base dataset")
	}
	if len(in.Warps) > 0 && len(in.Warps) != len(in.Subjects) {
		return nil, config.Errorf("inputs.warpsets", "got %d warps for %d subjects", len(in.Warps), len(in.Subjects))
	}

	p := newPlan()
	keys := make(map[string]bool, len(in.Subjects))
	for _, s := range in.Subjects {
		if keys[s.Base] {
			return nil, config.Errorf("inputs.dsets", "duplicate subject %s", s.Base)
		}
		keys[s.Base] = true
		p.subjects = append(p.subjects, s.Base)
	}

	m := b.mode()
	if m.nonlinear {
		start := b.cfg.NLLevelOnly
		if start == levels.None {
			start = 0
		}
		steps, err := levels.Sequence(start, b.cfg.UpsampleLevel, b.cfg.TypicalLevel)
		if err != nil {
			return nil, config.Errorf("levels", "%v", err)
		}
		if b.cfg.TypicalLevel == start && len(in.Warps) == 0 {
			return nil, config.Errorf("levels.typical_level", "level %d has no warps to measure a typical subject with", start)
		}
		p.steps = steps
	}

	bld := &build{Builder: b, plan: p, in: in}
	bld.run(m)

	log.Printf("[pipeline] built %d tasks for %d subjects", len(p.tasks), len(in.Subjects))
	return p, nil
}

// build holds the state of one Build call.
type build struct {
	*Builder
	plan *Plan
	in   Inputs
}

func (bl *build) subject(i int) string {
	return bl.plan.subjects[i]
}

func (bl *build) run(m mode) {
	p := bl.plan
	n := len(bl.in.Subjects)

	brains := make([]ref, n)
	for i, s := range bl.in.Subjects {
		brains[i] = ref{handle: s}
	}
	base := ref{handle: bl.in.Base}
	if m.rigid || m.affine || m.nonlinear {
		base = bl.toAFNI("base/to_afni", "", base)
	}

	if m.prep {
		for i := range brains {
			brains[i] = bl.prep(i, brains[i], base)
		}
		if bl.cfg.PrepOnly {
			bl.finish(ref{}, brains, nil)
			return
		}
	} else if m.affine {
		for i := range brains {
			brains[i] = bl.toAFNI(fmt.Sprintf("prep/%s/to_afni", bl.subject(i)), bl.subject(i), brains[i])
		}
	}

	target := base
	if m.rigid {
		var mean ref
		brains, mean = bl.rigid(brains, base)
		if bl.cfg.RigidOnly {
			bl.finish(mean, brains, nil)
			return
		}
		target = mean
	}

	if m.affine {
		brains, target = bl.affine(brains, target)
		if !m.nonlinear {
			bl.finish(target, brains, nil)
			return
		}
	}

	resize := target
	if !bl.in.ResizeBase.IsZero() {
		resize = bl.toAFNI("resize_base/to_afni", "", ref{handle: bl.in.ResizeBase})
	}

	var warps []ref
	if len(bl.in.Warps) > 0 {
		warps = make([]ref, n)
		for i, w := range bl.in.Warps {
			warps[i] = ref{handle: w}
		}
	}

	final := brains
	for _, step := range p.steps {
		target, resize, brains, warps, final = bl.level(step, target, resize, brains, warps)
	}
	bl.finish(target, final, warps)
}

func (bl *build) finish(template ref, brains, warps []ref) {
	p := bl.plan
	p.outRefs.template = template
	p.outRefs.brains = brains
	p.outRefs.warps = warps
	p.outputs = p.Outputs()
}

func task(id, title string, kind models.TaskKind, phase models.Phase, subject string, level int) *models.Task {
	return &models.Task{ID: id, Title: title, Kind: kind, Phase: phase, Subject: subject, Level: level}
}

// toAFNI adds a NIFTI to AFNI conversion when r is NIFTI.
func (bl *build) toAFNI(id, subject string, r ref) ref {
	if !r.handle.IsNIFTI() {
		return r
	}
	p := bl.plan
	t := task(id, "convert "+r.handle.Name()+" to AFNI", models.KindToAFNI, models.PhasePrep, subject, levels.None)
	return p.add(t, stages.ToAFNIOutput(r.handle), func(ctx context.Context) (stages.Result, error) {
		return bl.stager.ToAFNI(ctx, p.resolve(r))
	}, r)
}

// prep centers, skull strips and unifizes subject i.
func (bl *build) prep(i int, cur, base ref) ref {
	p := bl.plan
	s := bl.subject(i)
	id := func(op string) string { return fmt.Sprintf("prep/%s/%s", s, op) }

	cur = bl.toAFNI(id("to_afni"), s, cur)

	in := cur
	cur = p.add(task(id("align_centers"), "align centers of "+s, models.KindAlignCenters, models.PhasePrep, s, levels.None),
		in.handle.AFNIOutput(stages.SuffixAlignCenters, ""),
		func(ctx context.Context) (stages.Result, error) {
			return bl.stager.AlignCenters(ctx, p.resolve(in), p.resolve(base))
		}, in, base)

	switch {
	case bl.cfg.SkullStrip && bl.cfg.Automask:
		in := cur
		cur = p.add(task(id("automask"), "automask "+s, models.KindAutomask, models.PhasePrep, s, levels.None),
			in.handle.AFNIOutput(stages.SuffixAutomask, ""),
			func(ctx context.Context) (stages.Result, error) {
				return bl.stager.Automask(ctx, p.resolve(in))
			}, in)
	case bl.cfg.SkullStrip:
		in := cur
		cur = p.add(task(id("skullstrip"), "skull strip "+s, models.KindSkullStrip, models.PhasePrep, s, levels.None),
			in.handle.AFNIOutput(stages.SuffixSkullStrip, ""),
			func(ctx context.Context) (stages.Result, error) {
				return bl.stager.SkullStrip(ctx, p.resolve(in))
			}, in)
	}

	if bl.cfg.Unifize {
		in := cur
		cur = p.add(task(id("unifize"), "unifize "+s, models.KindUnifize, models.PhasePrep, s, levels.None),
			in.handle.AFNIOutput(stages.SuffixUnifize, ""),
			func(ctx context.Context) (stages.Result, error) {
				return bl.stager.Unifize(ctx, p.resolve(in), stages.SuffixUnifize)
			}, in)
	}
	return cur
}

// mean adds the group mean barrier over brains.
func (bl *build) mean(id string, phase models.Phase, level int, brains []ref, suffix, preprefix string) ref {
	p := bl.plan
	mean, _ := stages.MeanOutputs(brains[0].handle, preprefix, suffix)
	t := task(id, fmt.Sprintf("mean of %d %s datasets", len(brains), suffix), models.KindMean, phase, "", level)
	return p.add(t, mean, func(ctx context.Context) (stages.Result, error) {
		res, err := bl.agg.ComputeMean(ctx, p.resolveAll(brains), suffix, preprefix)
		return stages.Result{Output: res.Mean, Command: res.Command, Skipped: res.Skipped}, err
	}, brains...)
}

func (bl *build) rigid(brains []ref, base ref) ([]ref, ref) {
	p := bl.plan
	out := make([]ref, len(brains))
	for i, in := range brains {
		in := in
		s := bl.subject(i)
		t := task(fmt.Sprintf("rigid/%s/align", s), "rigid align "+s, models.KindRigidAlign, models.PhaseRigid, s, levels.None)
		out[i] = p.add(t, stages.RigidOutput(in.handle, base.handle), func(ctx context.Context) (stages.Result, error) {
			return bl.stager.RigidAlign(ctx, p.resolve(in), p.resolve(base))
		}, in, base)
	}
	mean := bl.mean("rigid/mean", models.PhaseRigid, levels.None, out, "_rigid", "tp0_")
	return out, mean
}

func (bl *build) affine(brains []ref, target ref) ([]ref, ref) {
	p := bl.plan
	out := make([]ref, len(brains))
	for i, in := range brains {
		in := in
		s := bl.subject(i)
		t := task(fmt.Sprintf("affine/%s/align", s), "affine align "+s, models.KindAffineAlign, models.PhaseAffine, s, levels.None)
		out[i] = p.add(t, stages.AffineOutput(in.handle, target.handle, stages.SuffixAffine), func(ctx context.Context) (stages.Result, error) {
			return bl.stager.AffineAlign(ctx, p.resolve(in), p.resolve(target), stages.SuffixAffine)
		}, in, target)
	}
	mean := bl.mean("affine/mean", models.PhaseAffine, levels.None, out, stages.SuffixAffine, "tp1_")
	return out, mean
}

// level adds one nonlinear level. It returns the next target, the resize
// base, the subject brains and resized warps for the next level, and the
// brains aligned at this level.
func (bl *build) level(step levels.Step, target, resize ref, brains, warps []ref) (ref, ref, []ref, []ref, []ref) {
	p := bl.plan
	k := step.Index
	phase := step.Phase()
	id := func(parts ...interface{}) string {
		s := fmt.Sprintf("nl%d", k)
		for _, part := range parts {
			s += fmt.Sprintf("/%v", part)
		}
		return s
	}

	if step.Upsample {
		target, resize, brains, warps = bl.upsample(step, target, resize, brains, warps)
	}

	if step.FindTypical {
		target = bl.typical(step, brains, warps)
	}

	aligned := make([]ref, len(brains))
	nlWarps := make([]ref, len(brains))
	for i, in := range brains {
		in := in
		var ini ref
		if warps != nil {
			ini = warps[i]
		}
		s := bl.subject(i)
		brain, warp := stages.NLOutputs(in.handle, target.handle, step.Level)
		t := task(id(s, "align"), fmt.Sprintf("nonlinear align %s (level %d)", s, k), models.KindNLAlign, phase, s, k)
		aligned[i] = p.add(t, brain, func(ctx context.Context) (stages.Result, error) {
			return bl.stager.NLAlign(ctx, p.resolve(in), p.resolve(target), p.resolve(ini), step.Level)
		}, in, target, ini)
		nlWarps[i] = ref{handle: warp, task: aligned[i].task, warp: true}
	}

	mean := bl.mean(id("mean"), phase, k, aligned, step.Suffix, step.TemplatePrefix())

	rsz := p.add(task(id("resize"), fmt.Sprintf("resize level %d template", k), models.KindResizeTemplate, phase, "", k),
		stages.AffineOutput(mean.handle, resize.handle, stages.SuffixResize),
		func(ctx context.Context) (stages.Result, error) {
			return bl.stager.AffineAlign(ctx, p.resolve(mean), p.resolve(resize), stages.SuffixResize)
		}, mean, resize)

	resized := make([]ref, len(brains))
	for i, w := range nlWarps {
		w := w
		s := bl.subject(i)
		t := task(id(s, "resize_warp"), fmt.Sprintf("resize %s warp (level %d)", s, k), models.KindResizeWarp, phase, s, k)
		resized[i] = p.add(t, stages.ResizeWarpOutput(w.handle), func(ctx context.Context) (stages.Result, error) {
			return bl.stager.ResizeWarp(ctx, p.resolve(w), p.resolve(rsz))
		}, w, rsz)
	}

	template := rsz
	if bl.cfg.UnifizeTemplate {
		in := template
		template = p.add(task(id("unifize"), fmt.Sprintf("unifize level %d template", k), models.KindUnifize, phase, "", k),
			in.handle.AFNIOutput(stages.SuffixUnifize, ""),
			func(ctx context.Context) (stages.Result, error) {
				return bl.stager.Unifize(ctx, p.resolve(in), stages.SuffixUnifize)
			}, in)
	}
	if bl.cfg.AnisoSmooth {
		in := template
		iters := bl.cfg.AnisoIters
		template = p.add(task(id("aniso_smooth"), fmt.Sprintf("smooth level %d template", k), models.KindAnisoSmooth, phase, "", k),
			in.handle.AFNIOutput(stages.SuffixAniso, ""),
			func(ctx context.Context) (stages.Result, error) {
				return bl.stager.AnisoSmooth(ctx, p.resolve(in), iters)
			}, in)
	}

	return template, resize, brains, resized, aligned
}

// upsample refines the target grid and puts the resize base, the subject
// brains and their warps on it.
func (bl *build) upsample(step levels.Step, target, resize ref, brains, warps []ref) (ref, ref, []ref, []ref) {
	p := bl.plan
	k := step.Index
	phase := step.Phase()

	in := target
	target = p.add(task(fmt.Sprintf("nl%d/upsample/target", k), "upsample target", models.KindUpsample, phase, "", k),
		in.handle.AFNIOutput(stages.SuffixUpsample, ""),
		func(ctx context.Context) (stages.Result, error) {
			return bl.stager.Upsample(ctx, p.resolve(in), stages.SuffixUpsample)
		}, in)

	resample := func(id, title, subject string, src ref) ref {
		master := target
		return p.add(task(id, title, models.KindResample, phase, subject, k),
			src.handle.AFNIOutput(stages.SuffixUpsample, ""),
			func(ctx context.Context) (stages.Result, error) {
				return bl.stager.Resample(ctx, p.resolve(src), p.resolve(master), stages.SuffixUpsample)
			}, src, master)
	}

	resize = resample(fmt.Sprintf("nl%d/upsample/resize_base", k), "resample resize base", "", resize)

	outBrains := make([]ref, len(brains))
	for i, b := range brains {
		s := bl.subject(i)
		outBrains[i] = resample(fmt.Sprintf("nl%d/%s/upsample", k, s), "resample "+s, s, b)
	}

	var outWarps []ref
	if warps != nil {
		outWarps = make([]ref, len(warps))
		for i, w := range warps {
			s := bl.subject(i)
			outWarps[i] = resample(fmt.Sprintf("nl%d/%s/upsample_warp", k, s), "resample "+s+" warp", s, w)
		}
	}
	return target, resize, outBrains, outWarps
}

// typical measures each subject's deformation and makes the subject with
// the least deformation the level's target.
func (bl *build) typical(step levels.Step, brains, warps []ref) ref {
	p := bl.plan
	k := step.Index
	phase := step.Phase()

	ids := make([]string, len(brains))
	deps := make([]ref, len(brains))
	for i := range brains {
		b, w := brains[i], warps[i]
		s := bl.subject(i)
		id := fmt.Sprintf("nl%d/%s/distance", k, s)
		ids[i] = id
		deps[i] = p.add(task(id, "deformation distance of "+s, models.KindDistance, phase, s, k),
			dataset.Handle{},
			func(ctx context.Context) (stages.Result, error) {
				res, err := bl.agg.DeformationDistance(ctx, p.resolve(b), p.resolve(w))
				if err != nil {
					return stages.Result{Command: res.Command}, err
				}
				p.setValue(id, res.Value)
				return stages.Result{Command: res.Command}, nil
			}, b, w)
	}

	subjects := append([]string(nil), p.subjects...)
	out := stages.TypicalOutput(bl.in.OutDir, brains[0].handle.Space)
	return p.add(task(fmt.Sprintf("nl%d/typical/select", k), "select typical subject", models.KindSelectTypical, phase, "", k),
		out,
		func(ctx context.Context) (stages.Result, error) {
			ds, err := p.distances(ids, subjects, p.resolveAll(brains), p.resolveAll(warps))
			if err != nil {
				return stages.Result{}, err
			}
			winner, err := aggregate.SelectTypical(ds)
			if err != nil {
				return stages.Result{}, err
			}
			sum := aggregate.Summarize(ds)
			log.Printf("[pipeline] level %d distances: n=%d mean=%.4g sd=%.4g min=%.4g max=%.4g",
				k, sum.N, sum.Mean, sum.StdDev, sum.Min, sum.Max)
			return bl.agg.CopyTypical(ctx, winner, bl.in.OutDir)
		}, deps...)
}
