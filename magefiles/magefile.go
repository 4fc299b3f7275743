//go:build mage

// Package main contains Mage build targets for proofbridge developer tooling.
// Implements: docs/ARCHITECTURE § Developer Tooling.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	binDir  = "bin"
	binName = "proofbridge"
	cmdPkg  = "./cmd/proofbridge"
)

// projectDirs lists the working directories a proofbridge checkout expects:
// per-backend environment-file directories and the report output directory.
var projectDirs = []string{
	"env/lean",
	"env/coq",
	"reports",
}

const configFile = "proofbridge.yaml"

// starterConfig seeds a new checkout. Values override the built-in defaults;
// PROOFBRIDGE_* environment variables override both.
const starterConfig = `primary_backend: lean
fallback_backends:
  - coq

adapters:
  lean:
    command: lean-repl
    env_dir: env/lean
  coq:
    command: coqtop
    args: ["-quiet"]
    env_dir: env/coq

audit:
  enabled: true
  path: proofbridge.db

serve:
  addr: ":8389"
  requests_per_second: 5.0
  burst: 10
`

// Init creates the project directory layout and, if none exists, a starter
// config file.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := os.WriteFile(configFile, []byte(starterConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configFile, err)
		}
		fmt.Println("  ", configFile)
	}
	return nil
}

// Build compiles the CLI binary into bin/, stamping the version from the
// VERSION environment variable when set.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)

	args := []string{"build", "-o", out}
	if v := os.Getenv("VERSION"); v != "" {
		args = append(args, "-ldflags", "-X main.version="+v)
	}
	args = append(args, cmdPkg)

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the full test suite with the race detector.
func Test() error {
	cmd := exec.Command("go", "test", "-race", "./...")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go test: %w", err)
	}
	return nil
}

// Lint vets the module and reports any files gofmt would rewrite.
func Lint() error {
	cmd := exec.Command("go", "vet", "./...")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go vet: %w", err)
	}

	out, err := exec.Command("gofmt", "-l", "cmd", "internal", "pkg", "magefiles").Output()
	if err != nil {
		return fmt.Errorf("gofmt: %w", err)
	}
	if files := strings.TrimSpace(string(out)); files != "" {
		return fmt.Errorf("gofmt needed on:\n%s", files)
	}
	return nil
}

// Stats prints project metrics: Go production/test LOC and documentation word count.
func Stats() error {
	prodLines, testLines, err := countGoLines(".")
	if err != nil {
		return err
	}
	docWords, err := countDocWords("docs")
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Words (documentation):           %d\n", docWords)
	return nil
}

// countGoLines walks the tree and counts non-blank lines in Go files, split
// into production and test totals.
func countGoLines(root string) (prod, test int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			// Skip bin/, hidden dirs, and underscore dirs the go tool ignores.
			if d.Name() == binDir || strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		count := 0
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				count++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			test += count
		} else {
			prod += count
		}
		return nil
	})
	return prod, test, err
}

// countDocWords counts words in .md and .yaml files under root. A missing
// root counts as zero.
func countDocWords(root string) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".md", ".yaml", ".yml":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		total += len(strings.Fields(string(data)))
		return nil
	})
	return total, err
}
