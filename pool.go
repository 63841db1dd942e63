package resolver

import (
	"sort"
	"sync"

	radix "github.com/armon/go-radix"
)

// PackageId is the dense, zero-based identifier the Pool assigns to
// every candidate it holds, per spec.md §4.4. Literal values in Rule/
// RuleSet are derived from PackageId, never from (name, version) pairs
// directly.
type PackageId int32

// nameTrie is a typed wrapper around armon/go-radix, following the same
// pattern as the teacher's deducerTrie: a small adapter that avoids
// repeating interface{} type assertions at every call site.
type nameTrie struct {
	mu sync.RWMutex
	t  *radix.Tree
}

func newNameTrie() *nameTrie {
	return &nameTrie{t: radix.New()}
}

func (t *nameTrie) insert(name string, ids []PackageId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.t.Insert(name, ids)
}

func (t *nameTrie) get(name string) ([]PackageId, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.t.Get(name)
	if !ok {
		return nil, false
	}
	return v.([]PackageId), true
}

// walkPrefix visits every (name, ids) pair whose name has the given
// prefix ("any package named like vendor/*"). Pool.WhatProvides does not
// use it; it looks names up exactly.
func (t *nameTrie) walkPrefix(prefix string, fn func(name string, ids []PackageId)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.t.WalkPrefix(prefix, func(s string, v interface{}) bool {
		fn(s, v.([]PackageId))
		return false
	})
}

// Pool is the deduplicated, densely-indexed universe of every Package
// candidate a Solver can choose from (spec.md §4.4): every candidate
// from every Repository, with duplicate (name, version) candidates
// collapsed, and indexed both by id and by name for O(1)/O(log n)
// lookups during rule generation.
type Pool struct {
	packages []Package
	byName   *nameTrie
	// provides maps a provided/replaced name to the ids of packages
	// that provide or replace it, built during optimization so rule
	// generation doesn't need to rescan every candidate per target.
	provides map[string][]PackageId
}

// NewPool builds a Pool from every candidate a Repository set can
// produce for the given root requirements' transitive closure of names.
// Callers collect candidates themselves (spec.md §4.2/§4.4 treat that as
// the Request/Repository layer's job) and hand the flat, deduplicated
// list to NewPool.
func NewPool(packages []Package) *Pool {
	p := &Pool{
		packages: make([]Package, len(packages)),
		byName:   newNameTrie(),
		provides: make(map[string][]PackageId),
	}
	copy(p.packages, packages)
	p.optimize()
	return p
}

// optimize dedups candidates that share a Package.ID (name plus pretty
// version), keeping the first one seen without comparing declared edges,
// and builds the name and provides/replaces indices.
func (p *Pool) optimize() {
	seen := make(map[string]bool, len(p.packages))
	deduped := p.packages[:0]
	for _, pkg := range p.packages {
		key := pkg.ID()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, pkg)
	}
	p.packages = deduped

	byName := make(map[string][]PackageId)
	for i, pkg := range p.packages {
		id := PackageId(i)
		byName[pkg.name] = append(byName[pkg.name], id)

		for _, l := range pkg.provide {
			p.provides[l.target] = append(p.provides[l.target], id)
		}
		for _, l := range pkg.replace {
			p.provides[l.target] = append(p.provides[l.target], id)
		}
	}

	for name, ids := range byName {
		sort.Slice(ids, func(i, j int) bool {
			return p.packages[ids[i]].version.Less(p.packages[ids[j]].version)
		})
		p.byName.insert(name, ids)
	}
}

// Len returns the number of distinct candidates in the pool.
func (p *Pool) Len() int { return len(p.packages) }

// Package returns the candidate at id.
func (p *Pool) Package(id PackageId) Package { return p.packages[id] }

// IdsForName returns every candidate id whose package name matches
// exactly, sorted by ascending version.
func (p *Pool) IdsForName(name string) []PackageId {
	ids, _ := p.byName.get(name)
	return ids
}

// WhatProvides returns every candidate id that satisfies name under
// constraint, either as the named package itself or via a provide/
// replace link, matching spec.md §4.2's "provide"/"replace" semantics.
func (p *Pool) WhatProvides(name string, c Constraint) []PackageId {
	var out []PackageId
	for _, id := range p.IdsForName(name) {
		if c == nil || c.Matches(p.packages[id].version) {
			out = append(out, id)
		}
	}

	for _, id := range p.provides[name] {
		pkg := p.packages[id]
		if providerConstraintMatches(pkg, name, c) {
			out = append(out, id)
		}
	}
	return out
}

func providerConstraintMatches(pkg Package, name string, c Constraint) bool {
	check := func(links []Link) bool {
		for _, l := range links {
			if l.target != name {
				continue
			}
			if c == nil || IsMatchAll(c) {
				return true
			}
			if _, ok := l.constraint.(selfVersionConstraint); ok {
				return c.Matches(pkg.version)
			}
			return ConstraintsIntersect(c, l.constraint)
		}
		return false
	}
	return check(pkg.provide) || check(pkg.replace)
}
