package plugins

import (
	"strings"
	"testing"

	"github.com/rowanhale/conveyor/internal/task"
)

func validDefinition() TaskDefinition {
	return TaskDefinition{
		ID:      "draft-copy",
		Name:    "Draft copy",
		Version: "1.0.0",
		Prompt:  "Write the landing page copy.",
		Schema:  SchemaDefinition{Required: []string{"text"}},
	}
}

func TestTaskDefinitionValidate(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	missing := map[string]TaskDefinition{
		"id":      {Version: "1.0.0", Prompt: "p"},
		"version": {ID: "x", Prompt: "p"},
		"prompt":  {ID: "x", Version: "1.0.0"},
	}
	for field, def := range missing {
		if err := def.Validate(); err == nil {
			t.Fatalf("expected error for missing %s", field)
		}
	}
}

func TestTaskDefinitionNormalizedTrims(t *testing.T) {
	def := TaskDefinition{
		ID:      " draft ",
		Version: " 1.0.0 ",
		Prompt:  "p",
		Inputs:  []string{" topic ", "  "},
		Uses:    []string{" brief "},
	}
	normalized := def.Normalized()
	if normalized.ID != "draft" || normalized.Version != "1.0.0" {
		t.Fatalf("identity not trimmed: %+v", normalized)
	}
	if len(normalized.Inputs) != 1 || normalized.Inputs[0] != "topic" {
		t.Fatalf("inputs not trimmed: %v", normalized.Inputs)
	}
	if len(normalized.Uses) != 1 || normalized.Uses[0] != "brief" {
		t.Fatalf("uses not trimmed: %v", normalized.Uses)
	}
}

type fakeView struct {
	initial map[string]any
	slots   map[string]task.Result
}

func (v fakeView) Initial() map[string]any { return v.initial }
func (v fakeView) Result(slot string) (task.Result, bool) {
	r, ok := v.slots[slot]
	return r, ok
}
func (v fakeView) Flag(string) bool { return false }

func TestTaskBuilderCopiesInputsAndUses(t *testing.T) {
	def := validDefinition()
	def.Inputs = []string{"topic"}
	def.Uses = []string{"brief"}
	runtime := def.Task()

	view := fakeView{
		initial: map[string]any{"topic": "pricing", "extra": "ignored"},
		slots: map[string]task.Result{
			"brief": {Fields: map[string]any{"goal": "homepage"}},
		},
	}
	payload, err := runtime.Build(view)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if payload["topic"] != "pricing" {
		t.Fatalf("input not copied: %+v", payload)
	}
	brief, ok := payload["brief"].(map[string]any)
	if !ok || brief["goal"] != "homepage" {
		t.Fatalf("used slot not included: %+v", payload)
	}
	if _, ok := payload["extra"]; ok {
		t.Fatalf("undeclared initial key leaked: %+v", payload)
	}
}

func TestTaskBuilderSkippedSlotContributesNil(t *testing.T) {
	def := validDefinition()
	def.Uses = []string{"mockup"}
	runtime := def.Task()

	view := fakeView{slots: map[string]task.Result{"mockup": task.SkippedResult}}
	payload, err := runtime.Build(view)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	value, present := payload["mockup"]
	if !present || value != nil {
		t.Fatalf("skipped slot must contribute explicit nil: %+v", payload)
	}
}

func TestTaskBuilderErrors(t *testing.T) {
	def := validDefinition()
	def.Inputs = []string{"topic"}
	runtime := def.Task()
	if _, err := runtime.Build(fakeView{}); err == nil || !strings.Contains(err.Error(), "topic") {
		t.Fatalf("expected missing input error, got %v", err)
	}

	def = validDefinition()
	def.Uses = []string{"brief"}
	runtime = def.Task()
	if _, err := runtime.Build(fakeView{}); err == nil || !strings.Contains(err.Error(), "brief") {
		t.Fatalf("expected missing slot error, got %v", err)
	}
}

func TestTaskDefaultsNameToID(t *testing.T) {
	def := validDefinition()
	def.Name = ""
	runtime := def.Task()
	if runtime.Name != "draft-copy" {
		t.Fatalf("name not defaulted: %q", runtime.Name)
	}
	if runtime.Schema.Required[0] != "text" {
		t.Fatalf("schema not carried: %+v", runtime.Schema)
	}
}
