package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/dirtree/pkg/testutil"
)

func notTTY() bool { return false }

// setup writes the sample tree and isolates config lookup.
func setup(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DT_TREE_DIR", "")
	dir := testutil.TempTreeDir(t)
	testutil.WriteTreeFile(t, dir, testutil.Sample())
	return filepath.Join(dir, ".dirtree")
}

func runDT(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr, notTTY)
	return code, stdout.String(), stderr.String()
}

func decode(t *testing.T, out string) jsonDoc {
	t.Helper()
	var doc jsonDoc
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return doc
}

func docIDs(doc jsonDoc) []int {
	ids := make([]int, len(doc.Entities))
	for i, e := range doc.Entities {
		ids[i] = e.ID
	}
	return ids
}

func TestVersion(t *testing.T) {
	code, out, _ := runDT(t, "-version")
	if code != exitOK || !strings.HasPrefix(out, "dt v") {
		t.Errorf("code=%d out=%q", code, out)
	}
}

func TestUnknownFlag(t *testing.T) {
	if code, _, _ := runDT(t, "-bogus"); code != exitUsage {
		t.Errorf("code = %d, want %d", code, exitUsage)
	}
	if code, _, _ := runDT(t, "stray"); code != exitUsage {
		t.Errorf("stray argument code = %d, want %d", code, exitUsage)
	}
}

func TestPlainRenderWhenNotTTY(t *testing.T) {
	dir := setup(t)
	code, out, errOut := runDT(t, "-dir", dir)
	if code != exitOK {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	want := "Home/\n├── Documents/\n├── Downloads/\n└── readme.md\n"
	if out != want {
		t.Errorf("output:\n%s\nwant:\n%s", out, want)
	}
}

func TestSearchJSON(t *testing.T) {
	dir := setup(t)
	code, out, errOut := runDT(t, "-dir", dir, "-search", "mobx", "-json")
	if code != exitOK {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	doc := decode(t, out)
	if doc.Query != "mobx" || doc.Total != 14 {
		t.Errorf("query=%q total=%d", doc.Query, doc.Total)
	}
	if doc.Root == nil || *doc.Root != 0 {
		t.Errorf("root = %v", doc.Root)
	}
	testutil.AssertIDSet(t, docIDs(doc), 0, 1, 2, 5, 12, 13)
}

func TestSearchNoMatchJSON(t *testing.T) {
	dir := setup(t)
	_, out, _ := runDT(t, "-dir", dir, "-search", "zzz", "-json")
	doc := decode(t, out)
	if doc.Root != nil || len(doc.Entities) != 0 {
		t.Errorf("expected empty result, got %+v", doc)
	}
}

func TestSearchLimit(t *testing.T) {
	dir := setup(t)
	code, _, errOut := runDT(t, "-dir", dir, "-search", "abcdefghijk")
	if code != exitUsage || !strings.Contains(errOut, "Can't exceed 10 characters") {
		t.Errorf("code=%d stderr=%q", code, errOut)
	}
}

func TestDelete(t *testing.T) {
	dir := setup(t)
	code, out, errOut := runDT(t, "-dir", dir, "-delete", "1", "-json")
	if code != exitOK {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(errOut, "deleted 8 entities") {
		t.Errorf("stderr = %q", errOut)
	}
	testutil.AssertIDSet(t, docIDs(decode(t, out)), 0, 3, 6, 7, 9, 11)
}

func TestMove(t *testing.T) {
	dir := setup(t)
	code, out, errOut := runDT(t, "-dir", dir, "-move", "13:7", "-json")
	if code != exitOK {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	for _, e := range decode(t, out).Entities {
		if e.ID == 13 && (e.ParentID == nil || *e.ParentID != 7) {
			t.Errorf("13 parent = %v, want 7", e.ParentID)
		}
	}
}

func TestMoveErrors(t *testing.T) {
	dir := setup(t)
	tests := []struct {
		arg     string
		code    int
		message string
	}{
		{"13-7", exitUsage, "target:destination"},
		{"x:7", exitUsage, "-move target"},
		{"13:4", exitFail, "Attempt to select file notes.txt as a destination"},
		{"1:5", exitFail, "into its own subtree"},
	}
	for _, tt := range tests {
		code, _, errOut := runDT(t, "-dir", dir, "-move", tt.arg)
		if code != tt.code || !strings.Contains(errOut, tt.message) {
			t.Errorf("-move %s: code=%d stderr=%q", tt.arg, code, errOut)
		}
	}
}

func TestExpandAll(t *testing.T) {
	dir := setup(t)
	_, out, _ := runDT(t, "-dir", dir, "-all")
	if !strings.Contains(out, "│   │   └── mobx2.jpg") {
		t.Errorf("expanded output missing nested file:\n%s", out)
	}
}

func TestValidate(t *testing.T) {
	dir := setup(t)
	code, out, _ := runDT(t, "-dir", dir, "-validate")
	if code != exitOK || out != "ok: 14 entities\n" {
		t.Errorf("code=%d out=%q", code, out)
	}

	broken := testutil.Sample()
	broken[4].ParentID = nil // a second root
	bad := filepath.Join(t.TempDir(), "broken.jsonl")
	testutil.WriteEntitiesFile(t, bad, broken)
	code, out, _ = runDT(t, "-source", bad, "-validate")
	if code != exitFail || !strings.Contains(out, "multiple_roots") {
		t.Errorf("code=%d out=%q", code, out)
	}
}

func TestStrictRejectsBrokenTree(t *testing.T) {
	setup(t)
	broken := testutil.Sample()
	broken[4].ParentID = nil
	bad := filepath.Join(t.TempDir(), "broken.jsonl")
	testutil.WriteEntitiesFile(t, bad, broken)
	code, _, errOut := runDT(t, "-source", bad, "-strict")
	if code != exitFail || !strings.Contains(errOut, "Error loading tree") {
		t.Errorf("code=%d stderr=%q", code, errOut)
	}
}

func TestMissingSource(t *testing.T) {
	setup(t)
	code, _, errOut := runDT(t, "-dir", filepath.Join(t.TempDir(), "nope"))
	if code != exitFail || !strings.Contains(errOut, "Error loading tree") {
		t.Errorf("code=%d stderr=%q", code, errOut)
	}
}

func TestBadCascade(t *testing.T) {
	dir := setup(t)
	if code, _, _ := runDT(t, "-dir", dir, "-cascade", "sideways"); code != exitUsage {
		t.Errorf("code = %d, want %d", code, exitUsage)
	}
}

func TestConfigFile(t *testing.T) {
	dir := setup(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "source:\n  dir: " + dir + "\nui:\n  search_limit: 3\n  show_ids: true\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runDT(t, "-config", cfgPath)
	if code != exitOK || !strings.HasPrefix(out, "[0] Home/") {
		t.Errorf("code=%d out=%q stderr=%q", code, out, errOut)
	}
	if code, _, _ := runDT(t, "-config", cfgPath, "-search", "mobx"); code != exitUsage {
		t.Errorf("search over configured limit: code = %d", code)
	}
}

func TestMetricsFlag(t *testing.T) {
	dir := setup(t)
	code, _, errOut := runDT(t, "-dir", dir, "-metrics")
	if code != exitOK || !strings.Contains(errOut, "{") {
		t.Errorf("code=%d stderr=%q", code, errOut)
	}
}

func TestParseMove(t *testing.T) {
	target, dest, err := parseMove(" 3 : 9 ")
	if err != nil || target != 3 || dest != 9 {
		t.Errorf("parseMove = %d, %d, %v", target, dest, err)
	}
}

func TestIsSourceFile(t *testing.T) {
	for name, want := range map[string]bool{
		"tree.db":     true,
		"tree.db-wal": true,
		"tree.jsonl":  true,
		"tree.jsonl~": false,
		"notes.txt":   false,
		".tree.json":  false,
	} {
		if got := isSourceFile(name); got != want {
			t.Errorf("isSourceFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestShouldSuppressTTYQueries(t *testing.T) {
	tests := []struct {
		args []string
		env  bool
		want bool
	}{
		{[]string{"-json"}, false, true},
		{[]string{"--validate"}, false, true},
		{[]string{"-metrics=true"}, false, true},
		{[]string{"-search", "json"}, false, false},
		{[]string{"-dir", "x"}, false, false},
		{nil, true, true},
	}
	for _, tt := range tests {
		if got := shouldSuppressTTYQueries(tt.args, tt.env); got != tt.want {
			t.Errorf("shouldSuppressTTYQueries(%v, %v) = %v, want %v", tt.args, tt.env, got, tt.want)
		}
	}
}

func TestDeleteAsksOnTerminal(t *testing.T) {
	dir := setup(t)
	saved := confirmFunc
	defer func() { confirmFunc = saved }()

	var asked string
	answer := false
	confirmFunc = func(title string) (bool, error) {
		asked = title
		return answer, nil
	}
	tty := func() bool { return true }

	var stdout, stderr bytes.Buffer
	code := run([]string{"-dir", dir, "-delete", "1", "-json"}, &stdout, &stderr, tty)
	if code != exitOK || !strings.Contains(stderr.String(), "delete cancelled") {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
	if asked != "Delete Documents and everything inside it?" {
		t.Errorf("prompt = %q", asked)
	}
	if n := len(decode(t, stdout.String()).Entities); n != 14 {
		t.Errorf("cancelled delete left %d entities, want 14", n)
	}

	answer = true
	stdout.Reset()
	stderr.Reset()
	run([]string{"-dir", dir, "-delete", "1", "-json"}, &stdout, &stderr, tty)
	testutil.AssertIDSet(t, docIDs(decode(t, stdout.String())), 0, 3, 6, 7, 9, 11)

	asked = ""
	stdout.Reset()
	run([]string{"-dir", dir, "-delete", "1", "-yes", "-json"}, &stdout, &stderr, tty)
	if asked != "" {
		t.Error("-yes must skip the prompt")
	}
}
