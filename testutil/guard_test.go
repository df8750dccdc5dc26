package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingT struct {
	testing.TB
	msg string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.msg = fmt.Sprintf(format, args...)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		path string
		want bool
	}{
		{"internal", InternalImportForbidden, "icetrace/internal/core", true},
		{"internal other module", InternalImportForbidden, "example.com/x/internal/y", true},
		{"internal pkg", InternalImportForbidden, "icetrace/pkg/domain", false},
		{"infra", InfraImportForbidden, "icetrace/internal/infra/blob/s3", true},
		{"infra facade", InfraImportForbidden, "icetrace/internal/blob", false},
		{"only allowed", OnlyModuleImports("icetrace/pkg/domain"), "icetrace/pkg/domain", false},
		{"only other", OnlyModuleImports("icetrace/pkg/domain"), "icetrace/internal/core", true},
		{"only stdlib", OnlyModuleImports(), "encoding/json", false},
		{"only third party", OnlyModuleImports(), "github.com/spf13/cobra", false},
		{"only lookalike", OnlyModuleImports(), "icetracer/pkg", false},
	}
	for _, tc := range cases {
		if got := tc.pred(tc.path); got != tc.want {
			t.Fatalf("%s: predicate(%q) = %v, want %v", tc.name, tc.path, got, tc.want)
		}
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package x\n\nimport (\n\t\"fmt\"\n\t\"icetrace/internal/core\"\n)\n\nvar _ = fmt.Sprint\nvar _ core.Service\n")
	writeFile(t, dir, "a_test.go", "package x\n\nimport \"icetrace/internal/infra/blob/fs\"\n")
	writeFile(t, dir, "notes.txt", "import \"icetrace/internal/core\"")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rec := &recordingT{TB: t}
	AssertNoDirectImports(rec, dir, InternalImportForbidden, "layering")
	if !strings.Contains(rec.msg, "icetrace/internal/core (in a.go)") || strings.Contains(rec.msg, "infra") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}

	rec = &recordingT{TB: t}
	AssertNoDirectImports(rec, dir, InfraImportForbidden, "layering")
	if rec.msg != "" {
		t.Fatalf("test files must be ignored, got %q", rec.msg)
	}

	rec = &recordingT{TB: t}
	AssertNoDirectImports(rec, filepath.Join(dir, "missing"), InternalImportForbidden, "layering")
	if !strings.Contains(rec.msg, "read dir") {
		t.Fatalf("expected read dir failure, got %q", rec.msg)
	}
}
