package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/esgmap/internal/config"
	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/google/go-cmp/cmp"
)

// setupEnv isolates the command from the host environment.
func setupEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "DB_URL", "MAPPING_FILE", "REQUIRE_API_KEY", "API_KEYS", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

// execRoot runs the root command with args and returns stdout and stderr.
func execRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = execute(cmd)
	return outBuf.String(), errBuf.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// scenarioFiles writes the two-row scenario and returns the run flags for it.
func scenarioFiles(t *testing.T, dir string) []string {
	t.Helper()
	return []string{
		"--primary", writeFile(t, dir, "portfolio.csv", "Ids,Taxonomy\n100,NA\n200,EXISTING\n"),
		"--taxonomy", writeFile(t, dir, "tax_a.csv", "MI Key\n100\n"),
		"--taxonomy", writeFile(t, dir, "tax_b.csv", "MI Key\n300\n"),
		"--pai", writeFile(t, dir, "pai.csv", "KeyInstn\n200\n"),
		"--esg", writeFile(t, dir, "esg.csv", "Report\n,\n,\n,\nSP_ENTITY_ID\n100\n"),
	}
}

// ============================================================================
// run
// ============================================================================

func TestRun_WritesFilledFile(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	stdout, _, err := execRoot(t, append([]string{"run"}, scenarioFiles(t, dir)...)...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "portfolio_filled.csv"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	want := "Ids,Taxonomy,PAI,ESG\n100,100,NA,100\n200,EXISTING,200,NA\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	for _, s := range []string{"2 rows written", "Taxonomy", "PAI", "ESG"} {
		if !strings.Contains(stdout, s) {
			t.Errorf("stdout missing %q:\n%s", s, stdout)
		}
	}
}

func TestRun_JSONSummaryAndOut(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "custom.csv")

	args := append([]string{"run", "--json", "--out", out}, scenarioFiles(t, dir)...)
	stdout, _, err := execRoot(t, args...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var summary core.Summary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if summary.TotalRows != 2 || len(summary.Counts) != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("--out file not written: %v", err)
	}
}

func TestRun_MissingInputs(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	_, stderr, err := execRoot(t, "run", "--pai", writeFile(t, dir, "pai.csv", "KeyInstn\n1\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr, "IN001") {
		t.Errorf("stderr should carry the support code: %s", stderr)
	}
	if !strings.Contains(err.Error(), "primary table") {
		t.Errorf("error should list the primary table: %v", err)
	}
}

func TestRun_ErrorReportedOnce(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	_, stderr, err := execRoot(t, "run", "--pai", writeFile(t, dir, "pai.csv", "KeyInstn\n1\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(stderr, "Error:"); n != 1 {
		t.Errorf("stderr has %d Error: lines, want 1:\n%s", n, stderr)
	}
	if n := strings.Count(stderr, "IN001"); n != 1 {
		t.Errorf("stderr has %d support codes, want 1:\n%s", n, stderr)
	}
}

func TestRun_UnknownFlagReported(t *testing.T) {
	setupEnv(t)

	_, stderr, err := execRoot(t, "run", "--no-such-flag")
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(stderr, "unknown flag"); n != 1 {
		t.Errorf("stderr mentions the flag %d times, want 1:\n%s", n, stderr)
	}
}

func TestRun_CustomSourceFromMappingFile(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()

	mapping := writeFile(t, dir, "mapping.yaml", `
targets:
  - field: Climate
    source: climate
    column: Issuer ID
    min_files: 1
`)
	primary := writeFile(t, dir, "book.csv", "Ids\n7\n8\n")
	ref := writeFile(t, dir, "climate.csv", "Issuer ID\n8\n")

	_, _, err := execRoot(t, "run", "--mapping", mapping, "--primary", primary, "--source", "climate="+ref)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "book_filled.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "Ids,Climate\n7,NA\n8,8\n"; string(got) != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRun_InvalidSourceFlag(t *testing.T) {
	setupEnv(t)

	_, _, err := execRoot(t, "run", "--source", "nokey")
	if err == nil || !strings.Contains(err.Error(), "key=path") {
		t.Errorf("error = %v, want key=path hint", err)
	}
}

// ============================================================================
// inspect
// ============================================================================

func TestInspect_HeaderRow(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "esg.csv", "Report\n,\n,\n,\n SP_ENTITY_ID ,Name\n1,a\n2,b\n")

	stdout, _, err := execRoot(t, "inspect", path, "--header-row", "5")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}

	if !strings.Contains(stdout, "2 columns, 2 data rows (header row 5)") {
		t.Errorf("unexpected summary line:\n%s", stdout)
	}
	if !strings.Contains(stdout, `matches as "SP_ENTITY_ID"`) {
		t.Errorf("trimmed header not shown:\n%s", stdout)
	}
}

func TestInspect_MissingHeaderRow(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "short.csv", "a\n1\n")

	if _, _, err := execRoot(t, "inspect", path, "--header-row", "9"); err == nil {
		t.Error("expected header row error")
	}
}

// ============================================================================
// mapping
// ============================================================================

func TestMapping_JSON(t *testing.T) {
	setupEnv(t)

	stdout, _, err := execRoot(t, "mapping", "--json")
	if err != nil {
		t.Fatalf("mapping failed: %v", err)
	}

	var got []config.TargetConfig
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}

	want := []config.TargetConfig{
		{Field: "Taxonomy", Source: "taxonomy", Column: "MI Key", HeaderRow: 1, MinFiles: 2},
		{Field: "PAI", Source: "pai", Column: "KeyInstn", HeaderRow: 1, MinFiles: 1},
		{Field: "ESG", Source: "esg", Column: "SP_ENTITY_ID", HeaderRow: 5, MinFiles: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestMapping_Table(t *testing.T) {
	setupEnv(t)

	stdout, _, err := execRoot(t, "mapping")
	if err != nil {
		t.Fatalf("mapping failed: %v", err)
	}
	for _, s := range []string{"Identity field:", "Ids", "SP_ENTITY_ID", "preserve"} {
		if !strings.Contains(stdout, s) {
			t.Errorf("stdout missing %q:\n%s", s, stdout)
		}
	}
}
