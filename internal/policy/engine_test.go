package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
)

const schoolOnlyRego = `package taskmail.intake

import rego.v1

deny contains msg if {
    not endswith(input.from, "@school.example")
    msg := sprintf("sender %s is not an allowed school domain", [input.from])
}

warn contains msg if {
    input.subject == ""
    msg := "email has no subject"
}
`

func writePolicies(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/data/policies/nested", 0755)
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return fs
}

func TestLoader_LoadAll(t *testing.T) {
	fs := writePolicies(t, map[string]string{
		"/data/policies/school.rego":       schoolOnlyRego,
		"/data/policies/nested/extra.rego": "package taskmail.intake\n",
		"/data/policies/README.md":         "# not a policy",
	})

	policies, err := NewLoader(fs, "/data/policies").LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("LoadAll() returned %d policies, want 2", len(policies))
	}
	if policies[0].Name != "extra" || policies[1].Name != "school" {
		t.Errorf("unexpected order/names: %s, %s", policies[0].Name, policies[1].Name)
	}
}

func TestLoader_LoadPaths(t *testing.T) {
	fs := writePolicies(t, map[string]string{
		"/data/policies/school.rego":       schoolOnlyRego,
		"/data/policies/nested/extra.rego": "package taskmail.intake\n",
		"/tmp/draft.rego":                  "package taskmail.intake\n",
	})

	policies, err := NewLoader(fs, "").LoadPaths("/tmp/draft.rego", "/data/policies/nested")
	if err != nil {
		t.Fatalf("LoadPaths() error = %v", err)
	}
	if len(policies) != 2 || policies[0].Name != "draft" || policies[1].Name != "extra" {
		t.Fatalf("unexpected policies: %+v", policies)
	}

	if _, err := NewLoader(fs, "").LoadPaths("/tmp/missing.rego"); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoader_MissingDirectory(t *testing.T) {
	policies, err := NewLoader(afero.NewMemMapFs(), "/nope").LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(policies) != 0 {
		t.Errorf("expected no policies, got %d", len(policies))
	}
}

func TestEngine_NoPoliciesAllows(t *testing.T) {
	engine, err := NewEngine(EngineConfig{PoliciesDir: "/missing", Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	decision, err := engine.CheckIntake(context.Background(), IntakeInput{Owner: "mom"})
	if err != nil {
		t.Fatalf("CheckIntake() error = %v", err)
	}
	if !decision.IsAllowed() || decision.DecisionID == "" {
		t.Errorf("expected allow with a decision id, got %+v", decision)
	}
}

func TestEngine_DenyAndWarn(t *testing.T) {
	fs := writePolicies(t, map[string]string{"/data/policies/school.rego": schoolOnlyRego})
	engine, err := NewEngine(EngineConfig{PoliciesDir: "/data/policies", Fs: fs})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine.PolicyCount() != 1 || engine.PolicyNames()[0] != "school" {
		t.Fatalf("unexpected policies: %v", engine.PolicyNames())
	}
	ctx := context.Background()

	decision, err := engine.CheckIntake(ctx, IntakeInput{Owner: "mom", From: "office@school.example", Subject: "Picture Day"})
	if err != nil {
		t.Fatalf("school sender should pass: %v", err)
	}
	if len(decision.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", decision.Warnings)
	}

	decision, err = engine.CheckIntake(ctx, IntakeInput{Owner: "mom", From: "spam@ads.example"})
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if decision.IsAllowed() || len(decision.Violations) != 1 {
		t.Errorf("expected one violation, got %+v", decision)
	}
	if len(decision.Warnings) != 1 {
		t.Errorf("expected the empty-subject warning, got %v", decision.Warnings)
	}
}

func TestNewEngine_RejectsInvalidPolicy(t *testing.T) {
	fs := writePolicies(t, map[string]string{"/data/policies/broken.rego": "package taskmail.intake\n\ndeny contains {"})
	if _, err := NewEngine(EngineConfig{PoliciesDir: "/data/policies", Fs: fs}); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestValidatePolicy(t *testing.T) {
	if err := ValidatePolicy(schoolOnlyRego); err != nil {
		t.Errorf("valid policy rejected: %v", err)
	}
	if err := ValidatePolicy("not rego"); err == nil {
		t.Error("expected invalid policy error")
	}
}
