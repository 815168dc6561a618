package holdpoint

import (
	"context"
	"testing"
)

func TestSetStep(t *testing.T) {
	fn := SetStep(State{"room": "204"}, "next-step")

	res, err := fn(context.Background(), State{"guest": "Ada"})
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if res.Next != "next-step" {
		t.Fatalf("unexpected transition: %q", res.Next)
	}
	if res.Delta["room"] != "204" {
		t.Fatalf("unexpected delta: %+v", res.Delta)
	}

	// The returned delta is a copy; mutating it must not leak into the
	// template the step was built from.
	res.Delta["room"] = "999"
	res2, _ := fn(context.Background(), State{})
	if res2.Delta["room"] != "204" {
		t.Fatalf("delta template was mutated: %+v", res2.Delta)
	}
}

func TestPassStep(t *testing.T) {
	fn := PassStep(End)
	res, err := fn(context.Background(), State{"anything": 1})
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if res.Next != End || len(res.Delta) != 0 {
		t.Fatalf("pass step changed something: %+v", res)
	}
}

func TestRequestApproval(t *testing.T) {
	res := RequestApproval(
		Result{Delta: State{"drafted": true}, Next: "send"},
		"submit_claim",
		map[string]any{"claim_id": "C-9"},
	)

	if res.Next != "send" || res.Delta["drafted"] != true {
		t.Fatalf("decoration clobbered the result: %+v", res)
	}
	if res.Pending == nil || res.Pending.Name != "submit_claim" {
		t.Fatalf("pending operation not attached: %+v", res.Pending)
	}
	if res.Pending.Args["claim_id"] != "C-9" {
		t.Fatalf("operation args lost: %+v", res.Pending.Args)
	}
}
