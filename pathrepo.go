package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// PathRepository is Composer's "path" repository kind: a single local
// directory, already containing a composer.json, that is offered as one
// Package candidate. It is collaborator-adjacent - the core solver never
// touches the filesystem itself - and exists so a caller assembling a
// Pool can include local working-copy packages the way `composer.json`'s
// "repositories": [{"type": "path", ...}] does.
type PathRepository struct {
	name string
	dir  string
	pkg  *Package
}

// NewPathRepository loads the composer.json manifest at dir and wraps it
// as a single-candidate Repository.
func NewPathRepository(dir string) (*PathRepository, error) {
	m, err := loadManifestFile(filepath.Join(dir, "composer.json"))
	if err != nil {
		return nil, errors.Wrapf(err, "path repository %s", dir)
	}
	p := m.ToPackage()
	return &PathRepository{name: "path:" + dir, dir: dir, pkg: &p}, nil
}

func (r *PathRepository) Name() string { return r.name }

func (r *PathRepository) HasPackage(name string) bool {
	return r.pkg != nil && r.pkg.Name() == name
}

func (r *PathRepository) FindPackages(name string) ([]Package, error) {
	if !r.HasPackage(name) {
		return nil, nil
	}
	return []Package{*r.pkg}, nil
}

// Stage materializes this repository's package into destDir by copying
// the source tree, the way Composer's PathDownloader symlinks or copies
// a "path" repository's working copy into vendor/. Symlinking is a
// filesystem-policy decision left to the caller; Stage always copies.
func (r *PathRepository) Stage(destDir string) error {
	if _, err := os.Stat(destDir); err == nil {
		return errors.Errorf("destination %s already exists", destDir)
	}
	return shutil.CopyTree(r.dir, destDir, nil)
}

// loadManifestFile reads and decodes a composer.json file into a
// Manifest, without validating it beyond basic JSON structure - full
// constraint parsing happens lazily via ToPackage.
func loadManifestFile(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return Manifest{}, errors.Wrap(err, "decoding composer.json")
	}
	return m, nil
}
