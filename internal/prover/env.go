// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadEnv reads all files in dir and returns KEY=value entries for the
// prover process environment: the filename is the variable name and the file
// contents (trimmed) are the value. Typical entries: LEAN_PATH, ELAN_HOME,
// COQPATH, OPAMROOT.
//
// A missing directory or an empty dir argument is not an error; LoadEnv
// returns nil. Unreadable files produce a warning on stderr but do not abort.
func LoadEnv(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading env directory %s: %w", dir, err)
	}

	var env []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read env file %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			env = append(env, name+"="+value)
		}
	}

	sort.Strings(env)
	return env, nil
}
