// check_boundaries enforces the hexagonal layering of every bounded context
// under contexts/. Run it from the repository root:
//
//	go run ./scripts/check_boundaries.go --root contexts
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

type options struct {
	Root   string `long:"root" default:"contexts" description:"directory holding the bounded contexts"`
	Module string `long:"module" default:"fundgate" description:"go module path of the repository"`
}

// layerRule lists what a layer may depend on. Paths in Own are relative to
// the owning service, e.g. "domain" resolves to
// fundgate/contexts/<context>/<service>/domain.
type layerRule struct {
	Own       []string
	Shared    []string
	Libraries []string
	Forbidden []string
}

var layerRules = map[string]layerRule{
	"domain": {
		Own:       []string{"domain"},
		Libraries: []string{"github.com/shopspring/decimal"},
		Forbidden: []string{"/adapters/", "/internal/"},
	},
	"ports": {
		Own:       []string{"domain", "ports"},
		Shared:    []string{"internal/shared"},
		Libraries: []string{"github.com/shopspring/decimal"},
		Forbidden: []string{"/adapters/", "/application/", "/internal/platform/"},
	},
	"application": {
		Own:    []string{"application", "domain", "ports"},
		Shared: []string{"internal/shared"},
		Libraries: []string{
			"github.com/shopspring/decimal",
			"github.com/panjf2000/ants/v2",
		},
		Forbidden: []string{"/adapters/", "/internal/platform/", "/internal/app/"},
	},
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	violations := collectViolations(opts.Root, opts.Module)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	fmt.Printf("%d boundary violation(s):\n", len(violations))
	for _, v := range violations {
		fmt.Printf("  %s:%d %q %s\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string, module string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}
		service := fmt.Sprintf("%s/contexts/%s/%s", module, parts[0], parts[1])
		layer := ""
		if len(parts) > 3 {
			layer = parts[2]
		}
		violations = append(violations, checkFile(path, module, service, layer)...)
		return nil
	})

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})
	return violations
}

func checkFile(path string, module string, service string, layer string) []violation {
	file := filepath.ToSlash(path)
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: file, Line: 1, Rule: "does not parse"}}
	}

	rule, layered := layerRules[layer]
	var out []violation
	for _, spec := range parsed.Imports {
		importPath := strings.Trim(spec.Path.Value, `"`)
		report := func(reason string) {
			out = append(out, violation{
				File:   file,
				Line:   fset.Position(spec.Pos()).Line,
				Import: importPath,
				Rule:   reason,
			})
		}

		if within(importPath, module+"/contexts") && !within(importPath, service) {
			report("reaches into another service")
		}
		if !layered || isStdlib(importPath, module) {
			continue
		}
		if hit := forbiddenSegment(importPath, module, rule.Forbidden); hit != "" {
			report(fmt.Sprintf("%s must not depend on %s", layer, strings.Trim(hit, "/")))
			continue
		}
		if !rule.permits(importPath, module, service) {
			report(layer + " import is not allowlisted")
		}
	}
	return out
}

func (r layerRule) permits(importPath string, module string, service string) bool {
	for _, own := range r.Own {
		if within(importPath, service+"/"+own) {
			return true
		}
	}
	for _, shared := range r.Shared {
		if within(importPath, module+"/"+shared) {
			return true
		}
	}
	for _, lib := range r.Libraries {
		if within(importPath, lib) {
			return true
		}
	}
	return false
}

func forbiddenSegment(importPath string, module string, segments []string) string {
	if !within(importPath, module) {
		return ""
	}
	local := strings.TrimPrefix(importPath, module)
	for _, segment := range segments {
		if strings.Contains(local+"/", segment) {
			return segment
		}
	}
	return ""
}

func within(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string, module string) bool {
	if within(importPath, module) {
		return false
	}
	head, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(head, ".")
}
