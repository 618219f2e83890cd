package expenseimport_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// buildBinary compiles cmd/expenseimport into a temp dir
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping binary build in short mode")
	}

	bin := filepath.Join(t.TempDir(), "expenseimport")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/expenseimport")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\nOutput: %s", err, out)
	}
	return bin
}

// command runs the binary with an isolated HOME and working directory
func command(t *testing.T, bin, dir string, args ...string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"HOME="+dir,
		"XDG_CONFIG_HOME="+filepath.Join(dir, ".config"),
		"NO_COLOR=1",
	)
	return cmd
}

func TestIntegration_Version(t *testing.T) {
	bin := buildBinary(t)

	out, err := command(t, bin, t.TempDir(), "-version").CombinedOutput()
	if err != nil {
		t.Fatalf("Expected zero exit code for -version, got %v\nOutput:\n%s", err, out)
	}
	if !strings.Contains(string(out), "expenseimport version 0.1.0") {
		t.Errorf("Expected version output, got:\n%s", out)
	}
}

func TestIntegration_MissingInput(t *testing.T) {
	bin := buildBinary(t)

	out, err := command(t, bin, t.TempDir()).CombinedOutput()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("Expected ExitError, got %T (%v)", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Errorf("Expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "Error: -input flag is required") {
		t.Errorf("Expected error about -input, got:\n%s", out)
	}
	if !strings.Contains(string(out), "Usage:") {
		t.Errorf("Expected usage message, got:\n%s", out)
	}
}

func TestIntegration_ImportCommitExport(t *testing.T) {
	bin := buildBinary(t)
	dir := t.TempDir()

	statements := filepath.Join(dir, "statements", "credit_union", "2024-02")
	if err := os.MkdirAll(statements, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"february.json": `{"transactions":[{"merchant":"Spotify","total":"$9.99","date":"2024-02-03"},{"name":"Shell gas","amount":41.2,"date":"2024-02-05"}]}`,
		"extra.csv":     "Date,Payee,Debit\n02/10/2024,Corner Bakery,7.25\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(statements, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	db := filepath.Join(dir, "expenses.db")
	outFile := filepath.Join(dir, "result.json")
	out, err := command(t, bin, dir,
		"-input", filepath.Join(dir, "statements"), "-categorize", "-commit", "-db", db, "-output", outFile,
	).CombinedOutput()
	if err != nil {
		t.Fatalf("Import failed: %v\nOutput:\n%s", err, out)
	}
	if !strings.Contains(string(out), "Found 2 file(s)") {
		t.Errorf("Expected file count in output, got:\n%s", out)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		Committed bool `json:"committed"`
		Totals    struct {
			Parsed   int `json:"parsed"`
			Imported int `json:"imported"`
		} `json:"totals"`
		Files []struct {
			Institution string `json:"institution"`
		} `json:"files"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !result.Committed || result.Totals.Parsed != 3 || result.Totals.Imported != 3 {
		t.Errorf("Unexpected totals: %+v", result)
	}
	if len(result.Files) != 2 || result.Files[0].Institution != "Credit Union" {
		t.Errorf("Unexpected files: %+v", result.Files)
	}

	csvOut, err := command(t, bin, dir, "export", "-db", db).Output()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	lines := strings.Split(string(csvOut), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d lines:\n%s", len(lines), csvOut)
	}
	if lines[1] != "2024-02-10,Corner Bakery,7.25,USD,Other,csv," {
		t.Errorf("Unexpected first row %q", lines[1])
	}
}
