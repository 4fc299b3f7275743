// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadEnvReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"LEAN_PATH": "/opt/mathlib\n",
		"COQPATH":   "  /opt/coq/user-contrib  ",
		".hidden":   "ignored",
		"EMPTY":     "   \n",
	}
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("creating subdir: %v", err)
	}

	env, err := LoadEnv(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"COQPATH=/opt/coq/user-contrib",
		"LEAN_PATH=/opt/mathlib",
	}
	if !reflect.DeepEqual(env, want) {
		t.Errorf("env = %v, want %v", env, want)
	}
}

func TestLoadEnvMissingDirectory(t *testing.T) {
	env, err := LoadEnv(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("missing directory should not be an error, got: %v", err)
	}
	if env != nil {
		t.Errorf("env = %v, want nil", env)
	}
}

func TestLoadEnvEmptyDirArgument(t *testing.T) {
	env, err := LoadEnv("")
	if err != nil || env != nil {
		t.Errorf("LoadEnv(\"\") = %v, %v; want nil, nil", env, err)
	}
}
