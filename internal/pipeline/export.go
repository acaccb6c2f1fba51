package pipeline

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/meanbrain/pkg/models"
)

type levelExport struct {
	Level       int      `yaml:"level"`
	Suffix      string   `yaml:"suffix"`
	Inilev      int      `yaml:"inilev"`
	QwarpOpts   []string `yaml:"qwarp_opts,flow"`
	Upsample    bool     `yaml:"upsample,omitempty"`
	FindTypical bool     `yaml:"find_typical,omitempty"`
}

type outputsExport struct {
	Template     string   `yaml:"template,omitempty"`
	TemplateTask string   `yaml:"template_task,omitempty"`
	Brains       []string `yaml:"brains,omitempty"`
	Warps        []string `yaml:"warps,omitempty"`
}

type planExport struct {
	Subjects []string       `yaml:"subjects"`
	Levels   []levelExport  `yaml:"levels,omitempty"`
	Tasks    []*models.Task `yaml:"tasks"`
	Outputs  outputsExport  `yaml:"outputs"`
}

// WriteYAML writes the plan's subjects, levels, tasks with their
// dependencies and commands, and final outputs to w.
func (p *Plan) WriteYAML(w io.Writer) error {
	doc := planExport{
		Subjects: p.subjects,
		Tasks:    p.tasks,
	}
	for _, s := range p.steps {
		doc.Levels = append(doc.Levels, levelExport{
			Level:       s.Index,
			Suffix:      s.Suffix,
			Inilev:      s.Inilev,
			QwarpOpts:   s.QwarpOpts,
			Upsample:    s.Upsample,
			FindTypical: s.FindTypical,
		})
	}

	out := p.Outputs()
	if !out.Template.IsZero() {
		doc.Outputs.Template = out.Template.Input()
	}
	doc.Outputs.TemplateTask = out.TemplateTask
	for _, b := range out.Brains {
		doc.Outputs.Brains = append(doc.Outputs.Brains, b.Input())
	}
	for _, w := range out.Warps {
		doc.Outputs.Warps = append(doc.Outputs.Warps, w.Input())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}
