package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/agen8/internal/domain"
)

func writeGraph(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write graph: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

const transformGraph = `{
	"workflow_name": "local",
	"nodes": [
		{"id": "first", "action_type": "transform", "params": {"mappings": {"n": "1"}}},
		{"id": "second", "action_type": "transform", "depends_on": ["first"],
		 "params": {"mappings": {"n": "{{ .Inputs.first.n }}"}}}
	]
}`

func TestValidateCmd_Valid(t *testing.T) {
	_, stderr, err := execute(t, "validate", writeGraph(t, transformGraph))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "Graph is valid") {
		t.Errorf("expected success message, got %q", stderr)
	}
}

func TestValidateCmd_InvalidJSON(t *testing.T) {
	graph := `{"nodes": [
		{"id": "a", "action_type": "transform", "params": {"mappings": {}}, "depends_on": ["b"]},
		{"id": "b", "action_type": "transform", "params": {"mappings": {}}, "depends_on": ["a"]}
	]}`

	stdout, _, err := execute(t, "--json", "validate", writeGraph(t, graph))
	if !errors.Is(err, ErrGraphInvalid) {
		t.Fatalf("expected ErrGraphInvalid, got %v", err)
	}

	var view struct {
		Valid  bool `json:"valid"`
		Errors []struct {
			NodeID string   `json:"node_id"`
			Cycle  []string `json:"cycle"`
		} `json:"errors"`
	}
	if err := json.Unmarshal([]byte(stdout), &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if view.Valid || len(view.Errors) != 1 || len(view.Errors[0].Cycle) != 3 {
		t.Errorf("unexpected validation view: %+v", view)
	}
}

func TestRunCmd_JSONReport(t *testing.T) {
	stdout, _, err := execute(t, "--json", "run", writeGraph(t, transformGraph))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report domain.WorkflowReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("output is not a report: %v\n%s", err, stdout)
	}
	if report.Status != domain.ReportStatusSuccess {
		t.Errorf("expected success, got %s: %v", report.Status, report.Errors)
	}
	if strings.Join(report.ExecutionTrace, ",") != "first,second" {
		t.Errorf("unexpected trace: %v", report.ExecutionTrace)
	}
}

func TestRunCmd_TableOutput(t *testing.T) {
	stdout, _, err := execute(t, "run", writeGraph(t, transformGraph))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"SUCCESS", "first -> second", "NODE", "second"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestRunCmd_InvalidGraphFails(t *testing.T) {
	graph := `{"nodes": [{"id": "mail", "action_type": "email_sender", "params": {"subject": "x"}}]}`

	_, _, err := execute(t, "run", writeGraph(t, graph))
	if !errors.Is(err, ErrRunFailed) {
		t.Errorf("expected ErrRunFailed, got %v", err)
	}
}

func TestRunCmd_ReadsStdin(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(transformGraph))
	cmd.SetArgs([]string{"--json", "run", "-"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"status": "success"`) {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestActionsCmd(t *testing.T) {
	stdout, _, err := execute(t, "actions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"web_scraper", "email_sender", "to,subject", "data_filter"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestReportsListCmd_RejectsUnknownStatus(t *testing.T) {
	// Статус проверяется до подключения к БД
	_, _, err := execute(t, "reports", "list", "--status", "done")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Errorf("expected unknown status error, got %v", err)
	}
}

func TestReportsShowCmd_RejectsBadID(t *testing.T) {
	_, _, err := execute(t, "reports", "show", "not-a-uuid")
	if err == nil || !strings.Contains(err.Error(), "invalid run id") {
		t.Errorf("expected invalid run id error, got %v", err)
	}
}

func TestSubmitCmd_ValidatesBeforePublishing(t *testing.T) {
	graph := `{"nodes": [{"id": "x", "action_type": "teleport"}]}`

	// Невалидный граф отклоняется без подключения к RabbitMQ
	_, _, err := execute(t, "submit", "--amqp-url", "amqp://invalid:1/", writeGraph(t, graph))
	if !errors.Is(err, ErrGraphInvalid) {
		t.Errorf("expected ErrGraphInvalid, got %v", err)
	}
}
