package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"albumrun/internal/config"
	"albumrun/internal/history"
	"albumrun/internal/testsupport"
)

const failingImportStub = `case "$*" in
  *"Bad Two"*) echo "import failed"; exit 1 ;;
esac
echo imported`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	libraryDir string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	opts = append([]testsupport.ConfigOption{testsupport.WithRunner(2, 2)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	libraryDir := filepath.Join(base, "library")
	testsupport.MakeTree(t, libraryDir,
		"Artist/Good One/01.flac",
		"Artist/Bad Two/01.flac",
		"Artist/Good Three/01.flac",
	)

	configPath := filepath.Join(homeDir, ".config", "albumrun", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		libraryDir: libraryDir,
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	quoted := make([]string, 0, len(cfg.Command.Args))
	for _, arg := range cfg.Command.Args {
		quoted = append(quoted, fmt.Sprintf("%q", arg))
	}
	content := fmt.Sprintf(`[paths]
log_dir = %q
state_dir = %q

[runner]
max_jobs = %d
max_retries = %d
backoff_seconds = 0

[command]
program = %q
args = [%s]

[logging]
level = "error"
retention_days = 0
`,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Runner.MaxJobs,
		cfg.Runner.MaxRetries,
		cfg.Command.Program,
		strings.Join(quoted, ", "),
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *exitCodeError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit code error, got %v", err)
	}
	if exitErr.code != code {
		t.Fatalf("expected exit code %d, got %d", code, exitErr.code)
	}
}

func latestRunID(t *testing.T, configPath string) string {
	t.Helper()
	out, _, err := runCLI(t, configPath, "history", "--json")
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var runs []runJSON
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) == 0 {
		t.Fatal("expected at least one recorded run")
	}
	return runs[0].ID
}

func TestRunReportsFailuresAndExitsNonZero(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubScript("beet", failingImportStub))

	out, _, err := runCLI(t, env.configPath, "run", env.libraryDir)
	requireExitCode(t, err, 1)
	requireContains(t, out, "Run summary: 3 total, 2 succeeded, 1 failed")
	requireContains(t, out, "Artist/Bad Two")
	requireContains(t, out, "Succeeded (2):")

	runID := latestRunID(t, env.configPath)
	logs, err := filepath.Glob(filepath.Join(env.cfg.Paths.LogDir, "units", runID, "*.log"))
	if err != nil {
		t.Fatalf("glob unit logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 unit logs, got %v", logs)
	}
	failedLog := filepath.Join(env.cfg.Paths.LogDir, "units", runID, "001_Artist-Bad Two.log")
	data, err := os.ReadFile(failedLog)
	if err != nil {
		t.Fatalf("read failed unit log: %v", err)
	}
	if got := strings.Count(string(data), "import failed"); got != 2 {
		t.Fatalf("expected 2 failed attempts in log, got %d:\n%s", got, data)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.LogDir, "albumrun-"+runID+".log")); err != nil {
		t.Fatalf("expected run log: %v", err)
	}
}

func TestRunAllSucceedExitsZero(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries("beet"))

	out, _, err := runCLI(t, env.configPath, "run", "--max-jobs", "10", env.libraryDir)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	requireContains(t, out, "Run summary: 3 total, 3 succeeded, 0 failed")
	if strings.Contains(out, "Failed (") {
		t.Fatalf("unexpected failed list in output:\n%s", out)
	}
}

func TestRunForwardsPassthroughArgs(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	t.Setenv("STUB_ARGS_FILE", argsFile)
	env := setupCLITestEnv(t, testsupport.WithStubScript("beet", `echo "$@" >> "$STUB_ARGS_FILE"`))

	if _, _, err := runCLI(t, env.configPath, "run", env.libraryDir, "--", "--noautotag", "-l", "import.log"); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 invocations, got %d:\n%s", len(lines), data)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "import -q ") || !strings.HasSuffix(line, "--noautotag -l import.log") {
			t.Fatalf("unexpected command arguments %q", line)
		}
	}
}

func TestRunDryRunSkipsCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCommand("albumrun-missing-importer", "import", "{path}"))

	out, _, err := runCLI(t, env.configPath, "run", "--dry-run", env.libraryDir)
	if err != nil {
		t.Fatalf("dry run returned error: %v", err)
	}
	requireContains(t, out, "3 succeeded")

	runID := latestRunID(t, env.configPath)
	data, err := os.ReadFile(filepath.Join(env.cfg.Paths.LogDir, "units", runID, "002_Artist-Good One.log"))
	if err != nil {
		t.Fatalf("read unit log: %v", err)
	}
	requireContains(t, string(data), "dry-run: albumrun-missing-importer import")
}

func TestRunMissingCommandFailsFast(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCommand("albumrun-missing-importer"))

	_, _, err := runCLI(t, env.configPath, "run", env.libraryDir)
	if err == nil {
		t.Fatal("expected error for missing command binary")
	}
	requireContains(t, err.Error(), "not found")
}

func TestRunArgumentValidation(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries("beet"))

	if _, _, err := runCLI(t, env.configPath, "run"); err == nil {
		t.Fatal("expected error without root")
	}
	if _, _, err := runCLI(t, env.configPath, "run", env.libraryDir, "extra"); err == nil {
		t.Fatal("expected error with two roots")
	}
	if _, _, err := runCLI(t, env.configPath, "run", "--max-jobs", "0", env.libraryDir); err == nil {
		t.Fatal("expected error for --max-jobs 0")
	}
	_, _, err := runCLI(t, env.configPath, "run", filepath.Join(env.baseDir, "missing"))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	requireContains(t, err.Error(), "invalid input")
}

func TestPlanJSONListsUnits(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MakeTree(t, env.libraryDir,
		"Box Set/CD1/01.flac",
		"Box Set/CD2/01.flac",
	)

	out, _, err := runCLI(t, env.configPath, "plan", "--json", env.libraryDir)
	if err != nil {
		t.Fatalf("plan returned error: %v", err)
	}
	var payload planJSON
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if payload.Total != 4 || payload.Single != 3 || payload.MultiDisc != 1 {
		t.Fatalf("unexpected plan counts: %+v", payload)
	}
	want := []string{"Artist/Bad Two", "Artist/Good One", "Artist/Good Three", "Box Set"}
	for i, id := range want {
		if payload.Units[i].ID != id || payload.Units[i].Position != i+1 {
			t.Fatalf("unit %d = %+v, want %s", i, payload.Units[i], id)
		}
	}
	if payload.Units[3].Kind != "multi-disc-group" {
		t.Fatalf("expected multi-disc group, got %s", payload.Units[3].Kind)
	}
}

func TestPlanTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "plan", env.libraryDir)
	if err != nil {
		t.Fatalf("plan returned error: %v", err)
	}
	requireContains(t, out, "Artist/Good Three")
	requireContains(t, out, "3 folders (3 single, 0 multi-disc)")
}

func TestHistoryAndShow(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubScript("beet", failingImportStub))

	out, _, err := runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, env.configPath, "run", env.libraryDir); err == nil {
		t.Fatal("expected failing run")
	}
	runID := latestRunID(t, env.configPath)

	out, _, err = runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	requireContains(t, out, runID[:8])
	requireContains(t, out, "failed")

	out, _, err = runCLI(t, env.configPath, "show", "--failed", runID[:8])
	if err != nil {
		t.Fatalf("show returned error: %v", err)
	}
	requireContains(t, out, "Artist/Bad Two")
	if strings.Contains(out, "Artist/Good One") {
		t.Fatalf("--failed listed a succeeded folder:\n%s", out)
	}

	out, _, err = runCLI(t, env.configPath, "show", "--json", runID)
	if err != nil {
		t.Fatalf("show --json returned error: %v", err)
	}
	var detail runDetailJSON
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode show: %v\n%s", err, out)
	}
	if detail.Run.Total != 3 || detail.Run.Failed != 1 || len(detail.Results) != 3 {
		t.Fatalf("unexpected run detail: %+v", detail)
	}
	if detail.Results[0].UnitID != "Artist/Bad Two" || detail.Results[0].Attempts != 2 {
		t.Fatalf("unexpected first result: %+v", detail.Results[0])
	}
}

func TestRunHelpDocumentsInterruptExit(t *testing.T) {
	out, _, err := runCLI(t, "", "run", "--help")
	if err != nil {
		t.Fatalf("run --help returned error: %v", err)
	}
	requireContains(t, out, "An interrupted run")
	requireContains(t, out, "also exits 1")
}

func TestShowUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "show", "does-not-exist")
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := strings.Count(err.Error(), "does-not-exist"); got != 1 {
		t.Fatalf("expected the run id once in %q, got %d", err.Error(), got)
	}
}

func TestDoctor(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries("beet"))

	out, _, err := runCLI(t, env.configPath, "doctor", env.libraryDir)
	if err != nil {
		t.Fatalf("doctor returned error: %v\n%s", err, out)
	}
	requireContains(t, out, "Import command")
	requireContains(t, out, "Library root")
	requireContains(t, out, "[OK]")

	missing := setupCLITestEnv(t, testsupport.WithCommand("albumrun-missing-importer"))
	out, _, err = runCLI(t, missing.configPath, "doctor")
	requireExitCode(t, err, 1)
	requireContains(t, out, "[ERROR]")
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "albumrun", "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init returned error: %v", err)
	}
	requireContains(t, out, target)
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite returned error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate returned error: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)
}

func TestLogFormatFlagRejectsUnsupportedValue(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.configPath, "--log-format", "xml", "plan", env.libraryDir); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}
