package resolver

import (
	"sort"
	"strings"

	mvcs "github.com/Masterminds/vcs"
	"github.com/pkg/errors"
)

// RepositoryError wraps a failure originating from a Repository
// implementation, keeping the offending repository's name attached for
// diagnostics.
type RepositoryError struct {
	Repo string
	Err  error
}

func (e *RepositoryError) Error() string {
	return "repository " + e.Repo + ": " + e.Err.Error()
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// Repository is a source of Package candidates for a name, per spec.md
// §4.2. Implementations never perform network or VCS fetches here -
// FindPackages returns whatever candidates the repository already has
// available in memory or on disk.
type Repository interface {
	// Name identifies the repository for diagnostics and priority
	// bookkeeping.
	Name() string
	// FindPackages returns every candidate Package this repository
	// offers for the given name, in no particular order.
	FindPackages(name string) ([]Package, error)
	// HasPackage reports whether this repository could, in principle,
	// ever produce a package under the given name (used to short-
	// circuit providers/replacers scans without a full fetch).
	HasPackage(name string) bool
}

// CompositeRepository aggregates several Repositories, each carrying a
// priority: lower-priority-index repositories are consulted first, and
// when two repositories offer the same (name, version) pair, the
// earliest one to "claim" it wins and later candidates are dropped -
// mirroring Composer's canonical-repository-order semantics.
type CompositeRepository struct {
	repos []Repository
}

// NewCompositeRepository builds a CompositeRepository. The order of
// repos is the priority order, highest priority first.
func NewCompositeRepository(repos ...Repository) *CompositeRepository {
	return &CompositeRepository{repos: repos}
}

func (c *CompositeRepository) Name() string { return "composite" }

func (c *CompositeRepository) HasPackage(name string) bool {
	for _, r := range c.repos {
		if r.HasPackage(name) {
			return true
		}
	}
	return false
}

func (c *CompositeRepository) FindPackages(name string) ([]Package, error) {
	claimed := make(map[string]bool)
	var out []Package
	for _, r := range c.repos {
		pkgs, err := r.FindPackages(name)
		if err != nil {
			return nil, &RepositoryError{Repo: r.Name(), Err: err}
		}
		for _, p := range pkgs {
			key := p.version.Pretty()
			if claimed[key] {
				continue
			}
			claimed[key] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].version.Less(out[j].version)
	})
	return out, nil
}

// RepositoryKind classifies the VCS flavor a Source descriptor belongs
// to, for diagnostics and for repositories (like PathRepository) that
// branch on it. It never drives an actual checkout - cloning is out of
// scope, per spec.md §1.
type RepositoryKind uint8

const (
	KindUnknown RepositoryKind = iota
	KindGit
	KindGitHub
	KindGitLab
	KindBitbucket
	KindSVN
	KindHg
	KindPath
	KindArtifact
)

func (k RepositoryKind) String() string {
	switch k {
	case KindGit:
		return "git"
	case KindGitHub:
		return "github"
	case KindGitLab:
		return "gitlab"
	case KindBitbucket:
		return "bitbucket"
	case KindSVN:
		return "svn"
	case KindHg:
		return "hg"
	case KindPath:
		return "path"
	case KindArtifact:
		return "artifact"
	default:
		return "unknown"
	}
}

// ClassifyRepositoryKind inspects a source URL the way Composer's VCS
// repository driver auto-detection does: known hosts by name first, then
// vcsType's URL-shape checks.
func ClassifyRepositoryKind(url string) RepositoryKind {
	switch {
	case strings.Contains(url, "github.com"):
		return KindGitHub
	case strings.Contains(url, "gitlab.com"):
		return KindGitLab
	case strings.Contains(url, "bitbucket.org"):
		return KindBitbucket
	}

	switch vcsType(url) {
	case "git":
		return KindGit
	case "svn":
		return KindSVN
	case "hg":
		return KindHg
	default:
		return KindUnknown
	}
}

// StaticRepository is the simplest Repository: an in-memory slice of
// Packages, grouped by name. It is the building block composer.lock /
// composer.json "fixed" and "locked" candidates are loaded into.
type StaticRepository struct {
	name string
	byName map[string][]Package
}

// NewStaticRepository builds a StaticRepository from a flat candidate
// list.
func NewStaticRepository(name string, pkgs []Package) *StaticRepository {
	byName := make(map[string][]Package)
	for _, p := range pkgs {
		byName[p.name] = append(byName[p.name], p)
	}
	return &StaticRepository{name: name, byName: byName}
}

func (s *StaticRepository) Name() string { return s.name }

func (s *StaticRepository) HasPackage(name string) bool {
	_, ok := s.byName[name]
	return ok
}

func (s *StaticRepository) FindPackages(name string) ([]Package, error) {
	pkgs, ok := s.byName[name]
	if !ok {
		return nil, nil
	}
	out := make([]Package, len(pkgs))
	copy(out, pkgs)
	return out, nil
}

// errUnsupportedRepositoryURL describes a URL that cannot be classified
// at all. Neither vcsType nor ClassifyRepositoryKind returns it; they
// report such a URL as "" and KindUnknown.
var errUnsupportedRepositoryURL = errors.New("unrecognized repository URL")

// vcsType guesses the VCS kind from the URL's shape (suffix, scheme and
// "+vcs" markers) with its own string checks, and names the result with
// Masterminds/vcs's type constants. It does not call the library's own
// detection.
func vcsType(url string) string {
	switch {
	case strings.HasSuffix(url, ".git") || strings.HasPrefix(url, "git://") ||
		strings.Contains(url, "+git"):
		return string(mvcs.Git)
	case strings.Contains(url, "+hg") || strings.HasPrefix(url, "hg::"):
		return string(mvcs.Hg)
	case strings.Contains(url, "+bzr") || strings.HasPrefix(url, "bzr::"):
		return string(mvcs.Bzr)
	case strings.Contains(url, "svn"):
		return string(mvcs.Svn)
	default:
		return ""
	}
}
