// Command composer-resolve is a minimal demonstration entrypoint that
// wires Pool, Request, and Solver together over an on-disk composer.json
// and prints the selected packages. It does not read composer.lock or
// build a Transaction. It is not a full Composer CLI -
// the full command surface is out of scope (see SPEC_FULL.md §5).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-composer/resolver"
)

// Loggers holds standard loggers and a verbosity flag, mirroring the
// teacher's own cmd/dep/loggers.go shape.
type Loggers struct {
	Out, Err *log.Logger
	Verbose  bool
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to get working directory:", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("composer-resolve", flag.ExitOnError)
	dir := fs.String("dir", wd, "project directory containing composer.json")
	verbose := fs.Bool("v", false, "enable solver tracing")
	installDev := fs.Bool("dev", true, "include require-dev in resolution")
	fs.Parse(os.Args[1:])

	loggers := Loggers{
		Out:     log.New(os.Stdout, "", 0),
		Err:     log.New(os.Stderr, "composer-resolve: ", 0),
		Verbose: *verbose,
	}

	if err := run(*dir, *installDev, loggers); err != nil {
		loggers.Err.Println(err)
		os.Exit(1)
	}
}

func run(dir string, installDev bool, loggers Loggers) error {
	data, err := os.ReadFile(filepath.Join(dir, "composer.json"))
	if err != nil {
		return err
	}
	manifest, err := resolver.ParseManifest(data)
	if err != nil {
		return err
	}
	root := manifest.ToPackage()

	repo := resolver.NewStaticRepository("root", []resolver.Package{root})
	candidates, err := repo.FindPackages(root.Name())
	if err != nil {
		return err
	}

	pool := resolver.NewPool(candidates)
	req := resolver.Request{
		Require:          root.Require(),
		RequireDev:       root.RequireDev(),
		InstallDev:       installDev,
		MinimumStability: resolver.StabilityStable,
	}

	gen := resolver.NewRuleGenerator(pool, req)
	rs := gen.Generate()
	policy := resolver.NewPolicy(pool, req)

	params := resolver.SolveParameters{Trace: loggers.Verbose, TraceLogger: loggers.Out}
	solver := resolver.NewSolver(pool, policy, rs, params)

	dec, problems, err := solver.Solve(context.Background())
	if err != nil {
		return err
	}
	if problems != nil {
		return problems
	}

	var solved []resolver.PackageId
	for id := 0; id < pool.Len(); id++ {
		if dec.Value(resolver.PackageId(id)) == 1 {
			solved = append(solved, resolver.PackageId(id))
		}
	}

	for _, id := range solved {
		pkg := pool.Package(id)
		loggers.Out.Printf("%s %s", pkg.Name(), pkg.Version().Pretty())
	}
	return nil
}
