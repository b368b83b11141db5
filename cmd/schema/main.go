package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"auravfx/server/internal/catalog"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run writes the catalog schema to --out and, with --check, loads the given
// catalog files and reports their issues. Issues exit with status 2.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("schema", flag.ContinueOnError)
	flags.SetOutput(stderr)
	outPath := flags.String("out", "", "path to write the cosmetic catalog JSON schema")
	check := flags.Bool("check", false, "load catalog files (positional args) and report issues")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *outPath == "" && !*check {
		fmt.Fprintln(stderr, "--out or --check is required")
		return 1
	}

	if *outPath != "" {
		if err := writeSchema(*outPath, buildSchema()); err != nil {
			fmt.Fprintf(stderr, "failed to write schema: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", *outPath)
	}

	if *check {
		return checkCatalog(flags.Args(), stdout, stderr)
	}
	return 0
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(catalog.File))
	schema.Title = "AuraVFX Cosmetic Catalog"
	schema.Description = "Operator-authored cosmetics merged over the built-in defaults (config/cosmetics.json)"
	return schema
}

func checkCatalog(paths []string, stdout, stderr io.Writer) int {
	if len(paths) == 0 {
		paths = catalog.DefaultPaths()
	}
	cat, err := catalog.Load(paths...)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load catalog: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "catalog: %d cosmetics (%s)\n", cat.Len(), cat.Summary())
	issues := cat.Issues()
	for _, issue := range issues {
		fmt.Fprintf(stderr, "issue: %s\n", issue)
	}
	if len(issues) > 0 {
		return 2
	}
	return 0
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	if schema == nil {
		return errors.New("nil schema")
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), filepath.Base(outPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp schema: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(append(data, '\n'))
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
