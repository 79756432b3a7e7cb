package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// run executes one CLI invocation against the file store in dir.
func run(t *testing.T, dir, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	SetArgs(root, append([]string{"--storage-driver", "file", "--path", dir}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, dir, stdin string, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, dir, stdin, args...)
	if err != nil {
		t.Fatalf("raffle %v: %v\n%s", args, err, errOut)
	}
	return out
}

func TestAddSearchListPersist(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if got := mustRun(t, dir, "", "add", "42"); got != "Saved number: 42\n" {
		t.Fatalf("add = %q", got)
	}
	if got := mustRun(t, dir, "", "bulk", "1-3,", "42;", "x"); got != "Added 4 number(s).\n" {
		t.Fatalf("bulk = %q", got)
	}
	if got := mustRun(t, dir, "", "search", "2"); got != "✅ Number 2 is in the list.\n" {
		t.Fatalf("search = %q", got)
	}
	if got := mustRun(t, dir, "", "search", "7"); got != "❌ Number 7 not found.\n" {
		t.Fatalf("search = %q", got)
	}
	if got := mustRun(t, dir, "", "list"); got != "Count: 4\n1 2 3 42\n" {
		t.Fatalf("list = %q", got)
	}
}

func TestFailuresExitNonZero(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"add", "4.5"}, "Please enter a valid integer."},
		{[]string{"search", "abc"}, "Enter a valid integer to search."},
		{[]string{"bulk", "a,b"}, "No valid numbers found."},
	}
	for _, tt := range tests {
		_, errOut, err := run(t, dir, "", tt.args...)
		if err == nil || err.Error() != tt.want {
			t.Fatalf("raffle %v: err = %v, want %q", tt.args, err, tt.want)
		}
		if !strings.Contains(errOut, tt.want) {
			t.Fatalf("stderr = %q", errOut)
		}
	}
	if got := mustRun(t, dir, "", "list"); got != "Count: 0\n" {
		t.Fatalf("list = %q", got)
	}
}

func TestBulkFromStdin(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if got := mustRun(t, dir, "5-3\n10 10\n", "bulk"); got != "Added 5 number(s).\n" {
		t.Fatalf("bulk = %q", got)
	}
	if got := mustRun(t, dir, "", "list"); got != "Count: 4\n3 4 5 10\n" {
		t.Fatalf("list = %q", got)
	}
	// empty input is ignored
	if got := mustRun(t, dir, "", "bulk"); got != "" {
		t.Fatalf("empty bulk = %q", got)
	}
}

func TestExportImport(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mustRun(t, dir, "", "bulk", "9 1 5")

	if got := mustRun(t, dir, "", "export"); got != "[1,5,9]\n" {
		t.Fatalf("export = %q", got)
	}
	file := filepath.Join(t.TempDir(), "numbers.json")
	mustRun(t, dir, "", "export", "-o", file)
	b, err := os.ReadFile(file)
	if err != nil || string(b) != "[1,5,9]" {
		t.Fatalf("export file = %q, %v", b, err)
	}

	other := t.TempDir()
	if got := mustRun(t, other, "", "import", file); got != "Imported 3 number(s).\n" {
		t.Fatalf("import = %q", got)
	}
	if got := mustRun(t, other, `[2, 2.0, 1e1, 2.5, "3", null]`, "import"); got != "Imported 3 number(s).\n" {
		t.Fatalf("import stdin = %q", got)
	}
	if got := mustRun(t, other, "", "list"); got != "Count: 5\n1 2 5 9 10\n" {
		t.Fatalf("list = %q", got)
	}

	_, _, err = run(t, other, `{"a":1}`, "import", "-")
	if err == nil || err.Error() != "Invalid JSON file." {
		t.Fatalf("malformed import err = %v", err)
	}
}

func TestClearConfirmation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mustRun(t, dir, "", "bulk", "1 2")

	if got := mustRun(t, dir, "n\n", "clear"); !strings.HasSuffix(got, "Cancelled.\n") {
		t.Fatalf("clear n = %q", got)
	}
	if got := mustRun(t, dir, "", "list"); got != "Count: 2\n1 2\n" {
		t.Fatalf("list = %q", got)
	}
	if got := mustRun(t, dir, "y\n", "clear"); got != "Clear all 2 number(s)? [y/N]: All numbers cleared.\n" {
		t.Fatalf("clear y = %q", got)
	}
	mustRun(t, dir, "", "add", "3")
	if got := mustRun(t, dir, "", "clear", "--yes"); got != "All numbers cleared.\n" {
		t.Fatalf("clear --yes = %q", got)
	}
	if got := mustRun(t, dir, "", "list"); got != "Count: 0\n" {
		t.Fatalf("list = %q", got)
	}
}

func TestBackup(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	backups := t.TempDir()
	mustRun(t, dir, "", "bulk", "1-3")

	for i := 0; i < 3; i++ {
		got := mustRun(t, dir, "", "backup", "--dir", backups, "--keep", "2")
		if !strings.HasPrefix(got, backups) || !strings.Contains(got, "(3 number(s)") {
			t.Fatalf("backup = %q", got)
		}
	}
	entries, err := os.ReadDir(backups)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("kept %d backups, want 2", len(entries))
	}
}

func TestConfigFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "storage:\n  driver: memory\nnumbers:\n  max_expansion: 5\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err := run(t, dir, "", "--config", cfgPath, "bulk", "1-10")
	if err == nil || err.Error() != "Range too large (max 5 numbers per input)." {
		t.Fatalf("err = %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("storage:\n  drvier: file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := run(t, dir, "", "--config", bad, "list"); err == nil {
		t.Fatal("unknown config key accepted")
	}
}

func TestNegativeNumbers(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if got := mustRun(t, dir, "", "add", "-5"); got != "Saved number: -5\n" {
		t.Fatalf("add = %q", got)
	}
	if got := mustRun(t, dir, "", "bulk", "-3", "4"); got != "Added 2 number(s).\n" {
		t.Fatalf("bulk = %q", got)
	}
	if got := mustRun(t, dir, "", "search", "-5"); got != "✅ Number -5 is in the list.\n" {
		t.Fatalf("search = %q", got)
	}
	if got := mustRun(t, dir, "", "search", "--", "-4"); got != "❌ Number -4 not found.\n" {
		t.Fatalf("search with explicit -- = %q", got)
	}
	if got := mustRun(t, dir, "", "list"); got != "Count: 3\n-5 -3 4\n" {
		t.Fatalf("list = %q", got)
	}
}

func TestNumbersAsArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want []string
	}{
		{[]string{"add", "5"}, []string{"add", "5"}},
		{[]string{"--path", "d", "add", "-5"}, []string{"--path", "d", "add", "--", "-5"}},
		{[]string{"bulk", "1", "-3"}, []string{"bulk", "1", "--", "-3"}},
		{[]string{"search", "--", "-5"}, []string{"search", "--", "-5"}},
		{[]string{"export", "-o", "f"}, []string{"export", "-o", "f"}},
		{[]string{"backup", "--keep", "-1"}, []string{"backup", "--keep", "-1"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, numbersAsArgs(tt.in)); diff != "" {
			t.Fatalf("numbersAsArgs(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestUnreachableRecordIsNotOverwritten(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// a directory where the record file should be makes every read fail
	if err := os.Mkdir(filepath.Join(dir, "raffle_numbers_v1.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, _, err := run(t, dir, "", "add", "1")
	if err == nil || !strings.Contains(err.Error(), "load numbers") {
		t.Fatalf("err = %v, want load failure", err)
	}

	corrupt := t.TempDir()
	if err := os.WriteFile(filepath.Join(corrupt, "raffle_numbers_v1.json"), []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := mustRun(t, corrupt, "", "list"); got != "Count: 0\n" {
		t.Fatalf("corrupt record list = %q", got)
	}
}
