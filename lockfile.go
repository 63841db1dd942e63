package resolver

import (
	"encoding/json"
	"os"

	flock "github.com/theckman/go-flock"
	"github.com/pkg/errors"
)

// LockedPackage is one entry in composer.lock's "packages"/"packages-dev"
// arrays: a fully-resolved name/version pair. Only these two fields are
// kept; any other metadata of a lock entry is dropped on decode and is
// absent when the entry is written back.
type LockedPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// LockFile is the decoded shape of composer.lock (spec.md §6).
type LockFile struct {
	ContentHash   string          `json:"content-hash"`
	Packages      []LockedPackage `json:"packages"`
	PackagesDev   []LockedPackage `json:"packages-dev"`
	Aliases       json.RawMessage `json:"aliases,omitempty"`
	MinimumStability string       `json:"minimum-stability,omitempty"`
	PreferStable  bool            `json:"prefer-stable,omitempty"`
	Platform      *OrderedMap     `json:"platform,omitempty"`
	PlatformDev   *OrderedMap     `json:"platform-dev,omitempty"`
}

// ToPackages converts a LockFile's entries into Packages, for seeding a
// StaticRepository of "locked" candidates.
func (lf LockFile) ToPackages(includeDev bool) ([]Package, error) {
	entries := lf.Packages
	if includeDev {
		entries = append(append([]LockedPackage{}, entries...), lf.PackagesDev...)
	}
	out := make([]Package, 0, len(entries))
	for _, e := range entries {
		v, err := ParseVersion(e.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "locked package %s", e.Name)
		}
		out = append(out, NewPackage(e.Name, v, PackageOptions{}))
	}
	return out, nil
}

// WriteLockFile serializes lf to path, holding an exclusive filesystem
// lock on path+".lock" for the duration of the write - mirroring the
// teacher's own vendor-directory guard during `dep ensure`, here scoped
// to the single lock file Composer writes rather than a whole vendor
// tree.
func WriteLockFile(path string, lf LockFile) error {
	fl := flock.NewFlock(path + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquiring lock file guard")
	}
	if !locked {
		return errors.Errorf("composer.lock is held by another process: %s", path)
	}
	defer fl.Unlock()

	data, err := json.MarshalIndent(lf, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding composer.lock")
	}
	data = escapeSlashes(data)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing composer.lock")
	}
	return nil
}
