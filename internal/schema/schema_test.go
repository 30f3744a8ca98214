package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApprovalRecordSchema(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"complete", `{"run_id":"20260101-000000","approved_at":"2026-01-01T00:00:00Z","approved_by":"ops","note":null}`, true},
		{"note optional", `{"run_id":"r","approved_at":"t","approved_by":"ops"}`, true},
		{"missing approver", `{"run_id":"r","approved_at":"t"}`, false},
		{"empty approver", `{"run_id":"r","approved_at":"t","approved_by":""}`, false},
		{"wrong type", `{"run_id":7,"approved_at":"t","approved_by":"ops"}`, false},
		{"not an object", `[]`, false},
		{"empty", ``, false},
		{"garbage", `{"run_id":`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(ApprovalRecord, []byte(tc.doc))
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestRunStateSchemaRejectsPartialStepStatus(t *testing.T) {
	doc := `{
	  "approval_required": false, "approved": false, "current_step": "pull_raw",
	  "ended_at": null, "errors": [], "killed": false, "paths": {},
	  "run_id": "r", "selected_problem_id": null, "selected_product_id": null,
	  "started_at": "2026-01-01T00:00:00Z",
	  "step_status": {"pull_raw": "pending"}
	}`
	require.Error(t, Validate(RunState, []byte(doc)))
}

func TestUnknownSchema(t *testing.T) {
	require.Error(t, Validate("nope.json", []byte(`{}`)))
}
