package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "auravfx/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under From from importing anything under To.
type rule struct {
	From []string
	To   string
}

// Domain packages stay independent of the scheduler and the transports;
// the in-memory host only backs the process entrypoint.
var rules = []rule{
	{
		From: []string{"internal/assets", "internal/lod", "internal/rigs", "internal/render", "internal/catalog", "internal/permissions", "internal/players", "internal/host"},
		To:   "internal/runtime",
	},
	{
		From: []string{"internal/assets", "internal/lod", "internal/rigs", "internal/render", "internal/catalog", "internal/permissions", "internal/players", "internal/host", "internal/runtime"},
		To:   "internal/net",
	},
	{
		From: []string{"internal/runtime", "internal/rigs", "internal/render", "internal/net", "internal/players"},
		To:   "internal/host/memhost",
	},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, check(pkg)...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func check(pkg packageInfo) []string {
	var violations []string
	for _, r := range rules {
		if !underAny(pkg.ImportPath, r.From) {
			continue
		}
		for _, imp := range pkg.Imports {
			if under(imp, r.To) {
				violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
			}
		}
	}
	return violations
}

func underAny(importPath string, roots []string) bool {
	for _, root := range roots {
		if under(importPath, root) {
			return true
		}
	}
	return false
}

func under(importPath, root string) bool {
	full := modulePath + "/" + root
	return importPath == full || strings.HasPrefix(importPath, full+"/")
}
