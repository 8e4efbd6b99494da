package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"

	"github.com/darianmavgo/garsql/config"
	"github.com/darianmavgo/garsql/converters"
)

func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func writeExport(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	xsd, err := os.ReadFile("../../converters/schema/testdata/AS_ADDR_OBJ_2_251_01_04_01_01.xsd")
	if err != nil {
		t.Fatalf("Failed to read schema fixture: %v", err)
	}
	files := map[string]string{
		"AS_ADDR_OBJ_2_251_01_04_01_01.xsd": string(xsd),
		"01/AS_ADDR_OBJ_20240101_1.xml": `<ADDRESSOBJECTS>
<OBJECT ID="1" OBJECTID="10" OBJECTGUID="g1" NAME="Майкоп" LEVEL="5" UPDATEDATE="2024-01-01" ISACTUAL="1" ISACTIVE="1"/>
</ADDRESSOBJECTS>`,
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestFormatsCommand(t *testing.T) {
	if err := execute(t, "formats"); err != nil {
		t.Fatalf("formats failed: %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garsql.hcl")
	if err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}
	if err := execute(t, "config", "init", path); err == nil {
		t.Error("expected an error when the file exists")
	}
	if err := execute(t, "config", "init", "--force", path); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}
}

func TestConvertAndVerify(t *testing.T) {
	input := writeExport(t)
	output := t.TempDir()

	cfgPath := filepath.Join(t.TempDir(), "garsql.hcl")
	cfg := config.DefaultConfig()
	cfg.Format = "postgres"
	cfg.Tables = []string{"ADDR_OBJ"}
	if err := config.Export(cfgPath, cfg); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	err := execute(t, "convert", input, output,
		"--config", cfgPath,
		"--format", "tsv",
		"--layout", "region_tree",
		"--no-banner",
	)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(output, "01", "ADDR_OBJ.tsv"))
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !strings.HasPrefix(string(content), "1\t10\tg1\tМайкоп\t") {
		t.Errorf("unexpected output: %q", content)
	}

	if err := execute(t, "verify", output); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(output, "01", "ADDR_OBJ.tsv"), []byte("changed\n"), 0644); err != nil {
		t.Fatalf("Failed to modify output: %v", err)
	}
	if err := execute(t, "verify", output); err == nil {
		t.Error("verify should fail after a file changed")
	}
}

func TestConvertRejectsUnknownFormat(t *testing.T) {
	input := writeExport(t)
	err := execute(t, "convert", input, t.TempDir(), "--format", "oracle")
	if err == nil || !strings.Contains(err.Error(), "format") {
		t.Fatalf("convert error = %v, want a format error", err)
	}
}

func TestDDLCommand(t *testing.T) {
	input := writeExport(t)
	out := filepath.Join(t.TempDir(), "schema.sql")
	if err := execute(t, "ddl", input, "addr_obj", "--format", "sqlite", "--include-keys", "-o", out); err != nil {
		t.Fatalf("ddl failed: %v", err)
	}
	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !strings.Contains(string(content), `CREATE TABLE "ADDR_OBJ"`) {
		t.Errorf("unexpected output:\n%s", content)
	}
	if !strings.Contains(string(content), "PRIMARY KEY") {
		t.Error("keys missing")
	}
}

func TestSchemaCommand(t *testing.T) {
	input := writeExport(t)
	if err := execute(t, "schema", input, "ADDR_OBJ"); err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	if err := execute(t, "schema", input, "NOPE"); err == nil {
		t.Error("expected an error for an unknown table")
	}
}

func TestVersion(t *testing.T) {
	if newRootCmd().Version != converters.Version {
		t.Error("root command does not carry the version")
	}
}
