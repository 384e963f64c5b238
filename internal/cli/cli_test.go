package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/config"
	"github.com/me/labflow/internal/logging"
	"github.com/me/labflow/internal/server"
	"github.com/me/labflow/internal/store"
)

const adminEmail = "admin@lab.test"

// startTestServer starts an API server over a memory store and points HOME
// at a temp dir so stored credentials stay inside the test.
func startTestServer(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LABFLOW_TOKEN", "")
	t.Setenv("LABFLOW_SERVER", "")

	st := store.NewMemoryStore(logging.Discard())
	cfg := config.DefaultServerConfig()
	cfg.Admins = []string{adminEmail}
	acc := auth.NewAccounts(st, auth.NewSessionManager(st, time.Hour), cfg, logging.Discard())
	acc.SetPasswordParams(auth.PasswordParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32})

	srv := server.New(cfg, catalog.New(st, logging.Discard()), acc, logging.Discard(), server.WithoutUI())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// mustRun runs the CLI against url and fails the test on error.
func mustRun(t *testing.T, url string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, "", append([]string{"--server", url}, args...)...)
	if err != nil {
		t.Fatalf("labflow %s: %v\noutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

// idAfter returns the first field following prefix in out.
func idAfter(t *testing.T, out, prefix string) string {
	t.Helper()
	i := strings.Index(out, prefix)
	if i < 0 {
		t.Fatalf("%q not in output: %s", prefix, out)
	}
	fields := strings.Fields(out[i+len(prefix):])
	if len(fields) == 0 {
		t.Fatalf("no id after %q in output: %s", prefix, out)
	}
	return fields[0]
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

const workflowYAML = `title: DNA Cleanup
description: Extract DNA and clean it up with beads.
category: Molecular Biology
difficulty: beginner
status: published
assays:
  - key: extract
    title: Extraction
    description: Extract genomic DNA
    protocol: Lyse cells and bind DNA to the column.
    estimated_time: 1 hour
    parameters:
      - name: samples
        description: Sample count
        type: number
        default_value: 2
    steps:
      - title: Lyse
        formula: "${samples} * 200"
      - title: Bind
  - key: cleanup
    title: Cleanup
    description: Bead cleanup of extracted DNA
    protocol: Add beads, wash with ethanol, and elute.
    estimated_time: 30 minutes
    steps:
      - title: Add beads
dependencies:
  - from: extract
    to: cleanup
`

func signupAs(t *testing.T, url, email string) string {
	t.Helper()
	return mustRun(t, url, "signup", "--email", email, "--password", "password123")
}

func TestSignupLoginLogout(t *testing.T) {
	url := startTestServer(t)

	out := signupAs(t, url, adminEmail)
	if !strings.Contains(out, "Signed in as admin@lab.test (admin)") {
		t.Errorf("signup output: %s", out)
	}
	creds := loadCredentials()
	if creds.Token == "" || creds.Server != url {
		t.Fatalf("stored credentials = %+v", creds)
	}

	// Email and password are prompted for when not given as flags.
	out, err := runCLI(t, adminEmail+"\npassword123\n", "--server", url, "login")
	if err != nil {
		t.Fatalf("login: %v\noutput: %s", err, out)
	}
	if loadCredentials().Token == creds.Token {
		t.Error("login should store a new token")
	}

	_, err = runCLI(t, "", "--server", url, "login", "--email", adminEmail, "--password", "wrong-password")
	if err == nil {
		t.Error("login with wrong password should fail")
	}

	out = mustRun(t, url, "logout")
	if !strings.Contains(out, "Logged out.") {
		t.Errorf("logout output: %s", out)
	}
	if loadCredentials().Token != "" {
		t.Error("credentials should be removed after logout")
	}
}

func TestWorkflowsCreateListGetDelete(t *testing.T) {
	url := startTestServer(t)
	signupAs(t, url, adminEmail)
	file := writeFile(t, "workflow.yaml", workflowYAML)

	out := mustRun(t, url, "workflows", "create", "-f", file)
	wfID := idAfter(t, out, "Workflow created:")
	if !strings.HasPrefix(wfID, "wf_") || !strings.Contains(out, "Assays: 2") {
		t.Errorf("create output: %s", out)
	}

	out = mustRun(t, url, "workflows", "list")
	if !strings.Contains(out, wfID) || !strings.Contains(out, "DNA Cleanup") {
		t.Errorf("list output: %s", out)
	}

	out = mustRun(t, url, "workflows", "get", wfID)
	for _, want := range []string{"1. Extraction", "2. Cleanup", "after Extraction", "Total assay time: 1 hour 30 minutes"} {
		if !strings.Contains(out, want) {
			t.Errorf("get output missing %q:\n%s", want, out)
		}
	}

	mustRun(t, url, "workflows", "delete", wfID)
	if _, err := runCLI(t, "", "--server", url, "workflows", "get", wfID); err == nil {
		t.Error("get after delete should fail")
	}
}

func TestWorkflowsCreate_RequiresAdmin(t *testing.T) {
	url := startTestServer(t)
	signupAs(t, url, "bench@lab.test")
	file := writeFile(t, "workflow.yaml", workflowYAML)

	if _, err := runCLI(t, "", "--server", url, "workflows", "create", "-f", file); err == nil {
		t.Fatal("non-admin create should fail")
	}
}

func TestWorkflowsCreate_UnknownKey(t *testing.T) {
	url := startTestServer(t)
	signupAs(t, url, adminEmail)
	file := writeFile(t, "workflow.yaml", "title: Typo\ndificulty: beginner\n")

	_, err := runCLI(t, "", "--server", url, "workflows", "create", "-f", file)
	if err == nil || !strings.Contains(err.Error(), "dificulty") {
		t.Fatalf("error = %v, want unknown field", err)
	}
}

func TestAssaysCreateGet(t *testing.T) {
	url := startTestServer(t)
	signupAs(t, url, adminEmail)
	wfID := idAfter(t, mustRun(t, url, "workflows", "create", "-f", writeFile(t, "wf.yaml", workflowYAML)), "Workflow created:")

	file := writeFile(t, "assay.yaml", `title: Quantification
description: Measure DNA concentration
protocol: Mix dye with sample and read fluorescence.
estimated_time: 20 minutes
materials:
  - name: Dye
    quantity: "1"
    unit: mL
parameters:
  - name: wells
    description: Wells to read
    type: number
    default_value: 4
steps:
  - title: Add dye
    formula: "${wells} * 2.5"
  - title: Read plate
`)
	out := mustRun(t, url, "assays", "create", "-f", file, "--workflow", wfID)
	assayID := idAfter(t, out, "Assay created:")
	if !strings.Contains(out, "Steps:    2") {
		t.Errorf("create output: %s", out)
	}

	out = mustRun(t, url, "assays", "get", assayID)
	if !strings.Contains(out, "${wells} * 2.5 = 10") || !strings.Contains(out, "- Dye: 1 mL") {
		t.Errorf("get output: %s", out)
	}
	out = mustRun(t, url, "assays", "get", assayID, "--set", "wells=6")
	if !strings.Contains(out, "${wells} * 2.5 = 15") {
		t.Errorf("get --set output: %s", out)
	}

	out = mustRun(t, url, "assays", "list", "--workflow", wfID)
	if !strings.Contains(out, assayID) || !strings.Contains(out, "Extraction") {
		t.Errorf("list output: %s", out)
	}
}

func TestRunsLifecycle(t *testing.T) {
	url := startTestServer(t)
	signupAs(t, url, adminEmail)
	wfID := idAfter(t, mustRun(t, url, "workflows", "create", "-f", writeFile(t, "wf.yaml", workflowYAML)), "Workflow created:")

	signupAs(t, url, "bench@lab.test")
	out := mustRun(t, url, "runs", "start", wfID, "--param", "samples=4")
	runID := idAfter(t, out, "Run started:")
	for _, want := range []string{"Status:   in-progress", "Assay:    1 of 2", "Step:     1 of 2", "samples = 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("start output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, url, "runs", "advance", runID)
	if !strings.Contains(out, "Step:     2 of 2") {
		t.Errorf("advance output: %s", out)
	}

	out = mustRun(t, url, "runs", "status", runID)
	if !strings.Contains(out, "Run: "+runID) {
		t.Errorf("status output: %s", out)
	}

	out = mustRun(t, url, "runs", "complete", runID)
	if !strings.Contains(out, "Status:   completed") || !strings.Contains(out, "Finished:") {
		t.Errorf("complete output: %s", out)
	}
	if _, err := runCLI(t, "", "--server", url, "runs", "abandon", runID); err == nil {
		t.Error("abandoning a completed run should fail")
	}

	out = mustRun(t, url, "runs", "list", "--status", "completed")
	if !strings.Contains(out, runID) {
		t.Errorf("list output: %s", out)
	}
}

func TestFormulaEval(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCLI(t, "", "formula", "eval", "${a} * 2 + ${b}", "--set", "a=3", "--set", "b=0.5")
	if err != nil {
		t.Fatalf("formula eval: %v", err)
	}
	for _, want := range []string{"Parameters: a, b", "Expression: 3 * 2 + 0.5", "Result: 6.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, "", "formula", "eval", "${missing} + 1"); err == nil {
		t.Error("missing parameter should fail")
	}
	if _, err := runCLI(t, "", "formula", "eval", "1", "--set", "novalue"); err == nil {
		t.Error("malformed --set should fail")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCLI(t, "", "duration", "30 minutes", "2 hours", "soon")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	for _, want := range []string{"150 min", "Total: 2 hours 30 minutes (150 min)", "invalid"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, "", "duration", "later"); err == nil {
		t.Error("only invalid durations should fail")
	}
}
