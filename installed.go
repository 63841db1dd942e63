package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// InstalledState is the decoded shape of vendor/composer/installed.json:
// the set of packages actually materialized on disk, as distinct from
// what composer.lock says should be there. Used as the "present" half of
// the Transaction Builder's diff (spec.md §4.9).
type InstalledState struct {
	Packages []LockedPackage `json:"packages"`
	DevMode  bool            `json:"dev"`
}

// ToPackages converts the installed set into Packages.
func (s InstalledState) ToPackages() ([]Package, error) {
	out := make([]Package, 0, len(s.Packages))
	for _, e := range s.Packages {
		v, err := ParseVersion(e.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "installed package %s", e.Name)
		}
		out = append(out, NewPackage(e.Name, v, PackageOptions{}))
	}
	return out, nil
}

// LocateInstalledState walks a project tree looking for
// vendor/composer/installed.json, using godirwalk instead of
// filepath.Walk for the same reason the teacher's `dep prune` does: a
// project tree can contain a large vendor/ directory, and godirwalk
// avoids the extra per-entry os.Lstat filepath.Walk performs. It returns
// the first match found and stops.
func LocateInstalledState(root string) (string, error) {
	const target = filepath.FromSlash("vendor/composer/installed.json")

	var found string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if found != "" {
				return filepath.SkipDir
			}
			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return nil
			}
			if rel == target {
				found = osPathname
				return filepath.SkipDir
			}
			return nil
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "walking project tree for installed.json")
	}
	if found == "" {
		return "", os.ErrNotExist
	}
	return found, nil
}

// LoadInstalledState reads and decodes an installed.json file.
func LoadInstalledState(path string) (InstalledState, error) {
	f, err := os.Open(path)
	if err != nil {
		return InstalledState{}, err
	}
	defer f.Close()

	var s InstalledState
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return InstalledState{}, errors.Wrap(err, "decoding installed.json")
	}
	return s, nil
}
