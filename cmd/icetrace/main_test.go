package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ICETRACE_STORAGE_DRIVER", "sqlite")
	t.Setenv("ICETRACE_SQLITE_PATH", filepath.Join(dir, "icetrace.db"))
	t.Setenv("ICETRACE_BLOB_DRIVER", "fs")
	t.Setenv("ICETRACE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("ICETRACE_LOG_LEVEL", "error")
	return &cli{t: t, dir: dir}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	if err != nil {
		c.t.Fatalf("icetrace %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

type addResult struct {
	Kind   string `json:"kind"`
	DryRun bool   `json:"dry_run"`
	Record struct {
		ID uint64 `json:"id"`
	} `json:"record"`
	Violations []struct {
		Rule     string `json:"rule"`
		Severity string `json:"severity"`
	} `json:"violations"`
}

func TestAddGetListAcrossInvocations(t *testing.T) {
	c := newCLI(t)
	company := decode[addResult](t, c.mustRun("", "add", "company", "--data", `{"name":"azienda di giovanni"}`))
	if company.Record.ID != 0 || company.DryRun {
		t.Fatalf("unexpected company result %+v", company)
	}

	dry := decode[addResult](t, c.mustRun(`{"company_id":0,"name":"tornio"}`, "add", "machine", "--dry-run"))
	if !dry.DryRun || dry.Record.ID != 0 {
		t.Fatalf("unexpected dry run result %+v", dry)
	}
	if machines := decode[[]map[string]any](t, c.mustRun("", "list", "machine")); len(machines) != 0 {
		t.Fatalf("dry run committed: %v", machines)
	}

	machine := decode[addResult](t, c.mustRun(`{"company_id":0,"name":"tornio"}`, "add", "machine"))
	if machine.Record.ID != dry.Record.ID {
		t.Fatalf("dry run predicted %d, commit got %d", dry.Record.ID, machine.Record.ID)
	}
	got := decode[map[string]any](t, c.mustRun("", "get", "machine", "0"))
	if got["name"] != "tornio" {
		t.Fatalf("unexpected machine %v", got)
	}
	byParent := decode[[]map[string]any](t, c.mustRun("", "list", "machine", "--parent", "0"))
	if len(byParent) != 1 {
		t.Fatalf("expected one machine under company 0, got %v", byParent)
	}
	empty := c.mustRun("", "list", "machine", "--parent", "9")
	if strings.TrimSpace(empty) != "[]" {
		t.Fatalf("expected empty list, got %q", empty)
	}
}

func TestTraceVerifyArchiveRestore(t *testing.T) {
	c := newCLI(t)
	c.mustRun("", "add", "company", "--data", `{"name":"A"}`)
	c.mustRun("", "add", "machine", "--data", `{"company_id":0,"name":"forno"}`)
	c.mustRun("", "add", "recipe", "--data", `{"company_id":0,"name":"pane"}`)
	c.mustRun("", "add", "recipe-step", "--data", `{"recipe_id":0,"machine_id":0,"name":"bake"}`)
	inverted := decode[addResult](t, c.mustRun("", "add", "measure_constraint", "--data",
		`{"recipe_step_id":0,"machine_id":0,"name":"temp","min_measure":1,"max_measure":-1,"unit":"C"}`))
	if len(inverted.Violations) != 1 || inverted.Violations[0].Rule != "measure_constraint_range" || inverted.Violations[0].Severity != "warn" {
		t.Fatalf("expected range warning, got %+v", inverted.Violations)
	}
	c.mustRun("", "add", "product", "--data", `{"company_id":0,"recipe_id":0,"name":"pagnotta"}`)
	c.mustRun("", "add", "phase", "--data", `{"product_id":0,"machine_id":0,"sequence_number":0,"name":"baking"}`)
	c.mustRun("", "add", "measure", "--data", `{"phase_id":0,"machine_id":0,"name":"temp","unit":"C","value1":200,"value2":201}`)

	trace := decode[struct {
		Steps []struct {
			Constraints []map[string]any `json:"constraints"`
		} `json:"steps"`
		Phases []struct {
			Measures []map[string]any `json:"measures"`
		} `json:"phases"`
	}](t, c.mustRun("", "trace", "0"))
	if len(trace.Steps) != 1 || len(trace.Steps[0].Constraints) != 1 || len(trace.Phases) != 1 || len(trace.Phases[0].Measures) != 1 {
		t.Fatalf("unexpected trace %+v", trace)
	}

	report := decode[struct {
		Entries int    `json:"entries"`
		Head    string `json:"head"`
	}](t, c.mustRun("", "verify"))
	if report.Entries != 8 || report.Head == "" {
		t.Fatalf("unexpected journal report %+v", report)
	}

	info := decode[struct {
		Key string `json:"key"`
	}](t, c.mustRun("", "archive"))
	if !strings.HasPrefix(info.Key, "snapshots/") {
		t.Fatalf("unexpected archive key %q", info.Key)
	}
	listed := decode[[]map[string]any](t, c.mustRun("", "snapshots"))
	if len(listed) != 1 {
		t.Fatalf("expected one snapshot, got %v", listed)
	}

	c.mustRun("", "add", "company", "--data", `{"name":"after archive"}`)
	restored := decode[struct {
		Journal struct {
			Entries int `json:"entries"`
		} `json:"journal"`
	}](t, c.mustRun("", "restore", info.Key))
	if restored.Journal.Entries != 8 {
		t.Fatalf("expected journal of 8 after restore, got %+v", restored)
	}
	if companies := decode[[]map[string]any](t, c.mustRun("", "list", "company")); len(companies) != 1 {
		t.Fatalf("restore did not replace state: %v", companies)
	}
}

func TestMetricsFileIsWritten(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(c.dir, "icetrace.prom")
	c.mustRun("", "--metrics-file", path, "add", "company", "--data", `{"name":"A"}`)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	for _, want := range []string{
		`icetrace_registry_operations_total{operation="add_company",status="success"} 1`,
		`icetrace_events_published_total{type="registry.company.added"} 1`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("expected %s in metrics:\n%s", want, raw)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	c := newCLI(t)
	cases := []struct {
		args  []string
		stdin string
		want  string
	}{
		{args: []string{"add", "widget", "--data", "{}"}, want: "unknown kind"},
		{args: []string{"add", "machine", "--data", `{"company_id":5,"name":"ghost"}`}, want: "referenced company 5 not found"},
		{args: []string{"add", "company", "--data", `{"name":""}`}, want: "invalid argument: company.name"},
		{args: []string{"add", "company"}, stdin: `{"nome":"x"}`, want: "decode record"},
		{args: []string{"get", "company", "3"}, want: "company 3 not found"},
		{args: []string{"get", "company", "abc"}, want: "invalid id"},
		{args: []string{"list", "company", "--parent", "0"}, want: "company has no parent"},
		{args: []string{"list", "measure_constraint", "--parent", "abc"}, want: "--parent must be a recipe_step id"},
		{args: []string{"trace", "0"}, want: "product 0 not found"},
		{args: []string{"restore", "snapshots/none.json"}, want: "not found"},
	}
	for _, tc := range cases {
		_, err := c.run(tc.stdin, tc.args...)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("icetrace %s: expected error containing %q, got %v", strings.Join(tc.args, " "), tc.want, err)
		}
	}
}

func TestBadConfigFails(t *testing.T) {
	c := newCLI(t)
	t.Setenv("ICETRACE_STORAGE_DRIVER", "etcd")
	if _, err := c.run("", "verify"); err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestHelpAndCompletionDoNotOpenStore(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ICETRACE_LOG_LEVEL", "error")
	c := &cli{t: t, dir: dir}

	script := c.mustRun("", "completion", "bash")
	if !strings.Contains(script, programName) {
		t.Fatalf("expected a bash completion script, got %q", script)
	}
	help := c.mustRun("", "help", "list")
	for _, want := range []string{"measure_constraint", "--parent is a recipe_step id", "company", "no parent"} {
		if !strings.Contains(help, want) {
			t.Fatalf("list help missing %q:\n%s", want, help)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "icetrace.db")); !os.IsNotExist(err) {
		t.Fatalf("help and completion must not create the database, stat: %v", err)
	}

	c.mustRun("", "list", "company")
	if _, err := os.Stat(filepath.Join(dir, "icetrace.db")); err != nil {
		t.Fatalf("expected list to open the default database: %v", err)
	}
}
