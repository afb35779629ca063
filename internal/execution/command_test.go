package execution

import (
	"reflect"
	"testing"

	"albumrun/internal/classify"
	"albumrun/internal/config"
)

func TestTemplateBuilderExpandsPlaceholders(t *testing.T) {
	b := NewTemplateBuilder(config.Command{
		Program:    "beet",
		Args:       []string{"import", "-q", "--set=album_id={id}", "{path}"},
		WorkingDir: "/srv",
		Env:        []string{"BEETSDIR=/config"},
	}, []string{"--flat"})

	unit := classify.WorkUnit{ID: "A/B", Path: "/music/A/B", Kind: classify.KindMultiDisc}
	cmd, err := b.Build(unit)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []string{"import", "-q", "--set=album_id=A/B", "/music/A/B", "--flat"}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("unexpected args: got %v want %v", cmd.Args, want)
	}
	if cmd.Dir != "/srv" || !reflect.DeepEqual(cmd.Env, []string{"BEETSDIR=/config"}) {
		t.Fatalf("unexpected dir/env: %+v", cmd)
	}
}

func TestTemplateBuilderAppendsPathWhenMissing(t *testing.T) {
	b := NewTemplateBuilder(config.Command{Program: "tagger", Args: []string{"--kind", "{kind}"}}, []string{"-v"})
	cmd, err := b.Build(classify.WorkUnit{ID: "x", Path: "/music/x", Kind: classify.KindSingle})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []string{"--kind", "single", "-v", "/music/x"}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("unexpected args: got %v want %v", cmd.Args, want)
	}
}

func TestTemplateBuilderRequiresProgram(t *testing.T) {
	b := NewTemplateBuilder(config.Command{Program: "  "}, nil)
	if _, err := b.Build(classify.WorkUnit{Path: "/x"}); err == nil {
		t.Fatal("expected error for empty program")
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Program: "beet", Args: []string{"import", "/music/It's Here", ""}}
	if got := cmd.String(); got != `beet import '/music/It'\''s Here' ''` {
		t.Fatalf("unexpected rendering: %s", got)
	}
}
