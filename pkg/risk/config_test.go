package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holdpoint/holdpoint/pkg/api"
)

func writePolicyFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing policy file failed: %v", err)
	}
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicyFile(t, `
approve_from: high
destructive: [wipe]
read_only: [preview]
operations:
  delete_all:
    level: high
  create_draft_order:
    level: low
    requires_approval: false
`)

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}

	if policy.ApproveFrom != api.RiskHigh {
		t.Fatalf("approve_from not loaded: %+v", policy)
	}
	if len(policy.Destructive) != 1 || policy.Destructive[0] != "wipe" {
		t.Fatalf("destructive vocabulary not loaded: %+v", policy.Destructive)
	}
	if len(policy.ReadOnly) != 1 || policy.ReadOnly[0] != "preview" {
		t.Fatalf("read_only vocabulary not loaded: %+v", policy.ReadOnly)
	}

	rule, ok := policy.Operations["delete_all"]
	if !ok || rule.Level != api.RiskHigh {
		t.Fatalf("delete_all rule not loaded: %+v", policy.Operations)
	}
	draft, ok := policy.Operations["create_draft_order"]
	if !ok || draft.Level != api.RiskLow {
		t.Fatalf("create_draft_order rule not loaded: %+v", policy.Operations)
	}
	if draft.RequiresApproval == nil || *draft.RequiresApproval {
		t.Fatalf("requires_approval override not loaded: %+v", draft)
	}

	// And the loaded policy drives classification end to end.
	c := NewClassifier(policy)
	if a := c.Classify(api.Operation{Name: "wipe_archive"}); a.Level != api.RiskHigh {
		t.Fatalf("loaded destructive word ignored: %+v", a)
	}
	if a := c.Classify(api.Operation{Name: "create_draft_order"}); a.RequiresApproval {
		t.Fatalf("loaded override ignored: %+v", a)
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadPolicy_MalformedYAML(t *testing.T) {
	path := writePolicyFile(t, "operations: [not, a, map]")
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected an error for malformed policy")
	}
}
