package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testWorkflow = `
nodes:
  - id: in
    node_type: InputNode
    title: question
  - id: out
    node_type: OutputNode
    coordinates: {x: 300, y: 0}
links:
  - source_id: in
    target_id: out
`

const testScript = `
name: rename input
steps:
  - command: rename_title
    node: in
    title: query
  - command: set_status
    node: out
    status: COMPLETED
  - command: delete_node
    node: ghost
`

// setupWorkspace writes a config pointing the store into a temp dir and
// returns the dir and config path.
func setupWorkspace(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := "telemetry:\n  logging:\n    level: error\nstore:\n  path: " + filepath.Join(dir, "drafts.db") + "\n"
	cfgPath := filepath.Join(dir, "canvas.yaml")
	writeFile(t, cfgPath, cfg)
	writeFile(t, filepath.Join(dir, "support.yaml"), testWorkflow)
	writeFile(t, filepath.Join(dir, "edits.yaml"), testScript)

	return dir, cfgPath
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "none", "now")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)

	out, err := runCommand(t, "validate", "-c", cfgPath, "--env-file", "", filepath.Join(dir, "support.yaml"))
	if err != nil {
		t.Fatalf("Expected validate to succeed, got: %v", err)
	}
	if !strings.Contains(out, "2 nodes, 1 edges") {
		t.Errorf("Expected node and edge counts, got: %s", out)
	}
}

func TestValidateCommand_Strict(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)
	path := filepath.Join(dir, "unknown.yaml")
	writeFile(t, path, "nodes:\n  - id: x\n    node_type: TeleportNode\n")

	if _, err := runCommand(t, "validate", "-c", cfgPath, "--env-file", "", path); err != nil {
		t.Fatalf("Expected lenient validate to succeed, got: %v", err)
	}
	if _, err := runCommand(t, "validate", "--strict", "-c", cfgPath, "--env-file", "", path); err == nil {
		t.Fatal("Expected strict validate to fail on unknown node type")
	}
}

func TestInspectCommand_JSON(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)

	out, err := runCommand(t, "inspect", "--json", "-c", cfgPath, "--env-file", "", filepath.Join(dir, "support.yaml"))
	if err != nil {
		t.Fatalf("Expected inspect to succeed, got: %v", err)
	}

	var view inspectView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("Expected JSON output, got: %v\n%s", err, out)
	}
	if view.WorkflowID != "support" || len(view.Nodes) != 2 || len(view.Edges) != 1 {
		t.Errorf("Expected support workflow with 2 nodes and 1 edge, got: %+v", view)
	}
	if view.Edges[0].SourceHandle != "question" {
		t.Errorf("Expected handle derived from title, got: %s", view.Edges[0].SourceHandle)
	}
}

func TestReplayAndDrafts(t *testing.T) {
	dir, cfgPath := setupWorkspace(t)
	exported := filepath.Join(dir, "exported.yaml")

	out, err := runCommand(t, "replay", "--json", "-c", cfgPath, "--env-file", "",
		"--workflow", filepath.Join(dir, "support.yaml"),
		"--out", exported,
		filepath.Join(dir, "edits.yaml"))
	if err != nil {
		t.Fatalf("Expected replay to succeed, got: %v", err)
	}

	var result replayOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("Expected JSON output, got: %v\n%s", err, out)
	}
	if result.Report.Applied != 2 || len(result.Report.Rejected) != 1 {
		t.Errorf("Expected 2 applied and 1 rejected, got: %+v", result.Report)
	}
	if result.DraftID == "" {
		t.Fatal("Expected a saved draft")
	}

	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("Expected export file, got: %v", err)
	}
	if !strings.Contains(string(data), "query") {
		t.Errorf("Expected renamed title in export, got:\n%s", data)
	}

	out, err = runCommand(t, "drafts", "list", "--json", "-c", cfgPath, "--env-file", "")
	if err != nil {
		t.Fatalf("Expected drafts list to succeed, got: %v", err)
	}
	if !strings.Contains(out, result.DraftID) {
		t.Errorf("Expected draft %s in list, got: %s", result.DraftID, out)
	}

	out, err = runCommand(t, "audit", "--action", "node.renamed", "-c", cfgPath, "--env-file", "")
	if err != nil {
		t.Fatalf("Expected audit to succeed, got: %v", err)
	}
	if !strings.Contains(out, "node.renamed") {
		t.Errorf("Expected rename in audit trail, got: %s", out)
	}

	if _, err := runCommand(t, "drafts", "delete", "-c", cfgPath, "--env-file", "", result.DraftID); err != nil {
		t.Fatalf("Expected delete to succeed, got: %v", err)
	}
	if _, err := runCommand(t, "drafts", "show", "-c", cfgPath, "--env-file", "", result.DraftID); err == nil {
		t.Error("Expected show of deleted draft to fail")
	}
}
