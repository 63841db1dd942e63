package resolver

import "fmt"

// UnknownPackage describes a name that has never been seen and has no
// candidates at all, as distinct from a name that exists but has no
// version satisfying some constraint. The Pool and the repositories in
// this package do not return it: for an unknown name they return zero
// candidates, which surfaces through the normal solve/Problem path.
type UnknownPackage struct {
	Name string
}

func (e *UnknownPackage) Error() string {
	return fmt.Sprintf("unknown package %q", e.Name)
}

// CyclicReplace describes a replace/provide cycle among Names that
// cannot be ordered. The Transaction Builder's topological ordering pass
// does not return it: that pass breaks every cycle by package name
// (spec.md §9).
type CyclicReplace struct {
	Names []string
}

func (e *CyclicReplace) Error() string {
	return fmt.Sprintf("cyclic replace/provide relationship among: %v", e.Names)
}
