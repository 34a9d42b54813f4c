// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-lint checks the locale files against the translation keys used in
// the source tree. It fails when code asks for a key the primary locale does
// not define, or when another locale lacks a key of the primary one.
// Orphaned keys only produce a warning.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
)

// usedKeyRe matches i18n.T("key" and i18n.T("prefix." + ...) calls.
var usedKeyRe = regexp.MustCompile(`i18n\.T\("([a-z0-9_.]+)"\s*(\+)?`)

// usage lists the keys referenced in code. Prefixes come from keys that are
// assembled at runtime, such as "decision." + d.String().
type usage struct {
	keys     map[string]struct{}
	prefixes []string
}

func (u usage) uses(key string) bool {
	if _, ok := u.keys[key]; ok {
		return true
	}
	for _, p := range u.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// report is the outcome of one lint run.
type report struct {
	unknown  []string            // used in code, absent from the primary locale
	missing  map[string][]string // locale file -> primary keys it lacks
	orphaned []string            // defined in the primary locale, never used
}

func (r report) failed() bool {
	return len(r.unknown) > 0 || len(r.missing) > 0
}

func main() {
	r, err := lint(".", localesDir, primaryLocale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-lint: %v\n", err)
		os.Exit(2)
	}
	printReport(r)
	if r.failed() {
		os.Exit(1)
	}
}

func lint(root, dir, primary string) (report, error) {
	r := report{missing: map[string][]string{}}

	used, err := findUsedKeys(root)
	if err != nil {
		return r, fmt.Errorf("scan sources: %w", err)
	}
	primaryKeys, err := loadKeysFromLocale(filepath.Join(dir, primary))
	if err != nil {
		return r, fmt.Errorf("load %s: %w", primary, err)
	}

	for key := range used.keys {
		if _, ok := primaryKeys[key]; !ok {
			r.unknown = append(r.unknown, key)
		}
	}
	for key := range primaryKeys {
		if !used.uses(key) {
			r.orphaned = append(r.orphaned, key)
		}
	}
	sort.Strings(r.unknown)
	sort.Strings(r.orphaned)

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return r, err
	}
	for _, file := range files {
		if filepath.Base(file) == primary {
			continue
		}
		keys, err := loadKeysFromLocale(file)
		if err != nil {
			return r, fmt.Errorf("load %s: %w", filepath.Base(file), err)
		}
		var missing []string
		for key := range primaryKeys {
			if _, ok := keys[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			r.missing[filepath.Base(file)] = missing
		}
	}
	return r, nil
}

func printReport(r report) {
	for _, key := range r.unknown {
		fmt.Printf("unknown key %s\n", key)
	}
	locales := make([]string, 0, len(r.missing))
	for l := range r.missing {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	for _, l := range locales {
		for _, key := range r.missing[l] {
			fmt.Printf("%s: missing %s\n", l, key)
		}
	}
	for _, key := range r.orphaned {
		fmt.Printf("warning: orphaned key %s\n", key)
	}
	if !r.failed() {
		fmt.Println("locales are consistent")
	}
}

// findUsedKeys scans the non-test Go files below root for i18n.T calls.
func findUsedKeys(root string) (usage, error) {
	u := usage{keys: map[string]struct{}{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "tools" || name == "testdata" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range usedKeyRe.FindAllStringSubmatch(string(content), -1) {
			if m[2] == "+" {
				u.prefixes = append(u.prefixes, m[1])
				continue
			}
			u.keys[m[1]] = struct{}{}
		}
		return nil
	})
	return u, err
}

// loadKeysFromLocale reads a YAML locale and returns its dot-joined leaf keys.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

func flattenYAML(prefix string, node any, keys map[string]struct{}) {
	switch v := node.(type) {
	case map[string]any:
		for k, val := range v {
			next := k
			if prefix != "" {
				next = prefix + "." + k
			}
			flattenYAML(next, val, keys)
		}
	default:
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
	}
}
