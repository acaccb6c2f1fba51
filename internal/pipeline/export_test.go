package pipeline

import (
	"bytes"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestPlan_WriteYAML(t *testing.T) {
	p := mustBuild(t, dryPipeline(), inputs(2))
	runAll(t, p)

	var buf bytes.Buffer
	if err := p.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML() error = %v", err)
	}

	var doc planExport
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if len(doc.Subjects) != 2 || doc.Subjects[0] != "sub01" {
		t.Errorf("Subjects = %v", doc.Subjects)
	}
	if len(doc.Levels) != 5 || doc.Levels[3].Inilev != 7 {
		t.Errorf("Levels = %+v", doc.Levels)
	}
	if len(doc.Tasks) != len(p.Tasks()) {
		t.Errorf("len(Tasks) = %d, want %d", len(doc.Tasks), len(p.Tasks()))
	}
	if doc.Outputs.TemplateTask != "nl4/resize" {
		t.Errorf("TemplateTask = %q, want nl4/resize", doc.Outputs.TemplateTask)
	}

	byID := make(map[string]int)
	for i, task := range doc.Tasks {
		byID[task.ID] = i
	}
	mean := doc.Tasks[byID["nl0/mean"]]
	if len(mean.DependsOn) != 2 {
		t.Errorf("nl0/mean depends_on = %v, want both subject aligns", mean.DependsOn)
	}
	if mean.Command == "" {
		t.Error("nl0/mean command missing after a dry run")
	}
}
