package resolver

import "sort"

// OperationKind classifies one step of a Transaction (spec.md §4.9).
type OperationKind uint8

const (
	OpInstall OperationKind = iota
	OpUpdate
	OpUninstall
	OpMarkAliasInstalled
	OpMarkAliasUninstalled
)

func (k OperationKind) String() string {
	switch k {
	case OpInstall:
		return "install"
	case OpUpdate:
		return "update"
	case OpUninstall:
		return "uninstall"
	case OpMarkAliasInstalled:
		return "mark-alias-installed"
	case OpMarkAliasUninstalled:
		return "mark-alias-uninstalled"
	default:
		return "unknown"
	}
}

// Operation is a single ordered step of a Transaction.
type Operation struct {
	Kind OperationKind
	// Package is the target of Install/Uninstall/MarkAlias* operations.
	Package Package
	// From is populated for Update: the previously-present version of
	// the same-named package being replaced.
	From Package
}

// Transaction is the ordered sequence of operations that carries a
// project from its present state to the solved result (spec.md §4.9): a
// present-vs-result diff, topologically sorted so that nothing is
// installed before its dependencies or uninstalled before its
// dependents.
type Transaction struct {
	Operations []Operation
	pool       *Pool
	solved     []PackageId
}

// BuildTransaction diffs present (the currently-installed packages,
// e.g. from InstalledState) against solved (the solver's chosen
// PackageIds) and topologically orders the resulting operations.
func BuildTransaction(pool *Pool, present []Package, solved []PackageId) *Transaction {
	presentByName := make(map[string]Package, len(present))
	for _, p := range present {
		presentByName[p.name] = p
	}
	solvedByName := make(map[string]PackageId, len(solved))
	for _, id := range solved {
		solvedByName[pool.Package(id).name] = id
	}

	var ops []Operation
	for name, id := range solvedByName {
		pkg := pool.Package(id)
		if old, ok := presentByName[name]; ok {
			if !old.version.Equal(pkg.version) {
				ops = append(ops, Operation{Kind: OpUpdate, Package: pkg, From: old})
			}
		} else {
			ops = append(ops, Operation{Kind: OpInstall, Package: pkg})
		}
	}
	for name, old := range presentByName {
		if _, ok := solvedByName[name]; !ok {
			ops = append(ops, Operation{Kind: OpUninstall, Package: old})
		}
	}

	t := &Transaction{pool: pool, solved: solved}
	t.Operations = topoSort(pool, solved, ops)
	return t
}

// topoSort orders install/update operations so a package is installed
// only after every package it requires, and uninstalls in the reverse
// order, using a simple arena (index-based node list) and edge list per
// spec.md §9's design note, breaking cycles deterministically by
// package name rather than failing outright.
func topoSort(pool *Pool, solved []PackageId, ops []Operation) []Operation {
	type node struct {
		op       Operation
		children []int
		visited  int // 0 unvisited, 1 in-progress, 2 done
	}

	byName := make(map[string]int)
	nodes := make([]node, len(ops))
	for i, op := range ops {
		nodes[i] = node{op: op}
		byName[op.Package.name] = i
	}

	solvedByName := make(map[string]PackageId, len(solved))
	for _, id := range solved {
		solvedByName[pool.Package(id).name] = id
	}

	for i := range nodes {
		uninstall := nodes[i].op.Kind == OpUninstall
		pkg := nodes[i].op.Package
		reqs := append([]Link{}, pkg.require...)
		sort.Slice(reqs, func(a, b int) bool { return reqs[a].target < reqs[b].target })
		for _, l := range reqs {
			if idx, ok := byName[l.target]; ok && (nodes[idx].op.Kind == OpUninstall) == uninstall {
				nodes[i].children = append(nodes[i].children, idx)
			}
		}
	}

	var order []int
	var visit func(i int)
	visit = func(i int) {
		switch nodes[i].visited {
		case 2:
			return
		case 1:
			// Cycle: break it here by simply not recursing further;
			// the name-sorted visitation order below still makes the
			// overall result deterministic.
			return
		}
		nodes[i].visited = 1
		for _, c := range nodes[i].children {
			visit(c)
		}
		nodes[i].visited = 2
		order = append(order, i)
	}

	names := make([]string, 0, len(nodes))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		visit(byName[name])
	}

	out := make([]Operation, 0, len(order))
	for _, i := range order {
		if nodes[i].op.Kind != OpUninstall {
			out = append(out, nodes[i].op)
		}
	}
	for j := len(order) - 1; j >= 0; j-- {
		if nodes[order[j]].op.Kind == OpUninstall {
			out = append(out, nodes[order[j]].op)
		}
	}
	return out
}

// DependencyPath is one hop in a why/why-not explanation: from requires
// to under constraint.
type DependencyPath struct {
	From       string
	To         string
	Constraint Constraint
}

// ExplainDependency walks the solved package graph backward from target
// to pkg, answering Composer's "why is pkg installed" / "why can't
// target be installed" queries (spec.md §4 supplemented feature). It
// returns the shortest path found, or nil if there is none.
func (t *Transaction) ExplainDependency(pkg, target string) []DependencyPath {
	idByName := make(map[string]PackageId, len(t.solved))
	for _, id := range t.solved {
		idByName[t.pool.Package(id).name] = id
	}

	targetID, ok := idByName[target]
	if !ok {
		return nil
	}

	var results [][]DependencyPath
	var dfs func(cur PackageId, path []DependencyPath, seen map[PackageId]bool)
	dfs = func(cur PackageId, path []DependencyPath, seen map[PackageId]bool) {
		curPkg := t.pool.Package(cur)
		if curPkg.name == pkg {
			cp := make([]DependencyPath, len(path))
			copy(cp, path)
			results = append(results, cp)
			return
		}
		for _, l := range curPkg.require {
			depID, ok := idByName[l.target]
			if !ok || seen[depID] {
				continue
			}
			seen[depID] = true
			dfs(depID, append(path, DependencyPath{From: curPkg.name, To: l.target, Constraint: l.constraint}), seen)
			delete(seen, depID)
		}
	}
	dfs(targetID, nil, map[PackageId]bool{targetID: true})

	sort.Slice(results, func(i, j int) bool { return len(results[i]) < len(results[j]) })
	if len(results) == 0 {
		return nil
	}
	return results[0]
}
