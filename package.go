package resolver

import "fmt"

// LinkKind distinguishes the flavors of package-to-package edges a
// Package can declare, per spec.md §3.
type LinkKind uint8

const (
	LinkRequire LinkKind = iota
	LinkRequireDev
	LinkConflict
	LinkProvide
	LinkReplace
)

// Link is one declared edge from a Package to a named target under a
// constraint (a require, conflict, provide, or replace entry).
type Link struct {
	target     string
	constraint Constraint
	kind       LinkKind
}

// NewLink builds a Link. constraint must not be nil; callers that mean
// "any version" should pass MatchAll().
func NewLink(kind LinkKind, target string, constraint Constraint) Link {
	if constraint == nil {
		constraint = MatchAll()
	}
	return Link{target: target, constraint: constraint, kind: kind}
}

func (l Link) Target() string         { return l.target }
func (l Link) Constraint() Constraint { return l.constraint }
func (l Link) Kind() LinkKind         { return l.kind }

// Package is an immutable (name, version) candidate together with its
// declared edges, as spec.md §3 defines it. Packages are built once by a
// Repository and never mutated; ReplaceSelfVersion is the one exception,
// returning a copy with replace-links rewritten to the root alias.
type Package struct {
	name           string
	version        Version
	require        []Link
	requireDev     []Link
	conflict       []Link
	provide        []Link
	replace        []Link
	abandoned      bool
	abandonedInFavorOf string
	rootAlias      bool
}

// PackageOptions bundles the optional fields used when constructing a
// Package, since most candidates only set a handful of them.
type PackageOptions struct {
	Require, RequireDev, Conflict, Provide, Replace []Link
	Abandoned                                       bool
	AbandonedInFavorOf                               string
	RootAlias                                        bool
}

// NewPackage builds an immutable Package value.
func NewPackage(name string, version Version, opts PackageOptions) Package {
	return Package{
		name:               name,
		version:            version,
		require:            opts.Require,
		requireDev:         opts.RequireDev,
		conflict:           opts.Conflict,
		provide:            opts.Provide,
		replace:            opts.Replace,
		abandoned:          opts.Abandoned,
		abandonedInFavorOf: opts.AbandonedInFavorOf,
		rootAlias:          opts.RootAlias,
	}
}

func (p Package) Name() string             { return p.name }
func (p Package) Version() Version         { return p.version }
func (p Package) Require() []Link          { return p.require }
func (p Package) RequireDev() []Link       { return p.requireDev }
func (p Package) Conflict() []Link         { return p.conflict }
func (p Package) Provide() []Link          { return p.provide }
func (p Package) Replace() []Link          { return p.replace }
func (p Package) Abandoned() bool          { return p.abandoned }
func (p Package) AbandonedInFavorOf() string { return p.abandonedInFavorOf }

// ID is the stable string identity of a package candidate, used as a map
// key and in diagnostic output; it is not the dense PackageId the Pool
// assigns.
func (p Package) ID() string {
	return fmt.Sprintf("%s-%s", p.name, p.version.Pretty())
}

func (p Package) Equal(o Package) bool {
	return p.name == o.name && p.version.Equal(o.version)
}

// ReplaceSelfVersion returns a copy of p whose replace-links that target
// "self.version" are rewritten to an exact-version constraint on p's own
// version, matching Composer's root-alias handling: a package may say
// `"replace": {"other/pkg": "self.version"}` to mean "exactly whatever
// version I resolved to".
func (p Package) ReplaceSelfVersion() Package {
	if len(p.replace) == 0 {
		return p
	}
	out := make([]Link, len(p.replace))
	changed := false
	for i, l := range p.replace {
		if sc, ok := l.constraint.(selfVersionConstraint); ok {
			_ = sc
			out[i] = NewLink(l.kind, l.target, NewConstraint(OpEQ, p.version))
			changed = true
			continue
		}
		out[i] = l
	}
	if !changed {
		return p
	}
	cp := p
	cp.replace = out
	return cp
}

// selfVersionConstraint is a marker Constraint used by manifest parsing
// to represent the literal "self.version" token before a Package's own
// version is known; ReplaceSelfVersion resolves it away.
type selfVersionConstraint struct{}

func (selfVersionConstraint) String() string        { return "self.version" }
func (selfVersionConstraint) Matches(Version) bool  { return false }
func (selfVersionConstraint) Bounds() (Bound, Bound) { return Bound{}, Bound{} }
func (selfVersionConstraint) Intersect(c Constraint) Constraint { return c }
func (selfVersionConstraint) _private()             {}

// SelfVersion returns the placeholder constraint for a manifest's
// "self.version" token.
func SelfVersion() Constraint { return selfVersionConstraint{} }
