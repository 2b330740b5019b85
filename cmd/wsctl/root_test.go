/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion_json(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, `"version"`) {
		t.Errorf("expected version field, got %q", out)
	}
}

func TestPolicyValidate_ok(t *testing.T) {
	path := writeFile(t, "policy.yaml", "disabled:\n  - Audit\nenabled:\n  - Player\n")

	out, err := execute(t, "policy", "validate", path, "--kind", "Audit,Player")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "1 disabled, 1 enabled") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPolicyValidate_unknownKind(t *testing.T) {
	path := writeFile(t, "policy.yaml", "disabled:\n  - Audit\n")

	if _, err := execute(t, "policy", "validate", path, "--kind", "Player"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

func TestPolicyValidate_conflict(t *testing.T) {
	path := writeFile(t, "policy.yaml", "disabled:\n  - Audit\nenabled:\n  - Audit\n")

	if _, err := execute(t, "policy", "validate", path); err == nil {
		t.Fatal("expected conflict error")
	}
}

func TestConfigShow_hidesSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "ws.yaml", "name: scoring\nddb:\n  table: t1\n  access_key: AKIA\n  secret_key: hunter2\n")

	out, err := execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "table: t1") {
		t.Errorf("expected table in output, got %q", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("secret key must not be printed")
	}
}
