package resolver

import (
	"strings"

	"github.com/Masterminds/semver"
)

// IsPlatformPackage reports whether a package name is a platform package
// rather than a real, installable one (spec.md §4.3): "php", "ext-*",
// "lib-*", "composer", "composer-plugin-api", "composer-runtime-api".
func IsPlatformPackage(name string) bool {
	switch name {
	case "php", "composer-plugin-api", "composer-runtime-api", "composer":
		return true
	}
	return strings.HasPrefix(name, "ext-") || strings.HasPrefix(name, "lib-")
}

// PlatformRepository synthesizes the single-version Packages that
// represent the host environment: the PHP runtime itself, its loaded
// extensions, and fixed API identifiers. Unlike every other Repository,
// its candidates are not fetched - they are computed once from probe
// strings handed in by the caller (e.g. "php -r 'echo PHP_VERSION;'"
// output), or overridden outright via Overrides.
type PlatformRepository struct {
	// Probes maps a platform package name to its raw, SemVer-shaped
	// version string as reported by the host (PHP itself always
	// reports clean SemVer, e.g. "8.3.4"; composer-plugin-api follows
	// suit).
	Probes map[string]string
	// Overrides force a specific version for a name, bypassing Probes
	// entirely, per spec.md §4.3 ("Overrides in configuration may force
	// specific versions or disable entries").
	Overrides map[string]string
	// Disabled names are dropped from FindPackages/HasPackage outright,
	// as though the platform did not provide them.
	Disabled map[string]bool
}

func (p *PlatformRepository) Name() string { return "platform" }

func (p *PlatformRepository) HasPackage(name string) bool {
	if p.Disabled[name] {
		return false
	}
	if _, ok := p.Overrides[name]; ok {
		return true
	}
	_, ok := p.Probes[name]
	return ok
}

func (p *PlatformRepository) FindPackages(name string) ([]Package, error) {
	if p.Disabled[name] {
		return nil, nil
	}

	raw, ok := p.Overrides[name]
	if !ok {
		raw, ok = p.Probes[name]
	}
	if !ok {
		return nil, nil
	}

	v, err := parsePlatformVersion(raw)
	if err != nil {
		return nil, &RepositoryError{Repo: p.Name(), Err: err}
	}
	return []Package{NewPackage(name, v, PackageOptions{})}, nil
}

// parsePlatformVersion trusts that platform probes are clean, strict
// SemVer (PHP's own version strings always are) and uses
// Masterminds/semver to validate and normalize the triple before handing
// it to our own non-SemVer ParseVersion, isolating the one corner of the
// domain where real SemVer input actually occurs.
func parsePlatformVersion(raw string) (Version, error) {
	sv, err := semver.NewVersion(raw)
	if err != nil {
		// Not strict SemVer (e.g. an extension reporting "7.4.3-dev" or
		// a bespoke scheme) - fall back to our own tolerant parser.
		return ParseVersion(raw)
	}
	return ParseVersion(sv.String())
}
