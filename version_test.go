package resolver

import "testing"

func TestParseVersionNumeric(t *testing.T) {
	cases := []struct {
		raw  string
		segs [4]uint32
		stab Stability
	}{
		{"1.0.0", [4]uint32{1, 0, 0, 0}, StabilityStable},
		{"v1.2.3", [4]uint32{1, 2, 3, 0}, StabilityStable},
		{"1.2", [4]uint32{1, 2, 0, 0}, StabilityStable},
		{"1.2.3.4", [4]uint32{1, 2, 3, 4}, StabilityStable},
		{"1.0.0-beta2", [4]uint32{1, 0, 0, 0}, StabilityBeta},
		{"1.0.0-RC1", [4]uint32{1, 0, 0, 0}, StabilityRC},
		{"2.0.0-dev", [4]uint32{2, 0, 0, 0}, StabilityDev},
	}
	for _, c := range cases {
		v, err := ParseVersion(c.raw)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", c.raw, err)
			continue
		}
		if v.Segments() != c.segs {
			t.Errorf("%s: segments = %v, want %v", c.raw, v.Segments(), c.segs)
		}
		if v.Stability() != c.stab {
			t.Errorf("%s: stability = %v, want %v", c.raw, v.Stability(), c.stab)
		}
	}
}

func TestParseVersionBranches(t *testing.T) {
	v, err := ParseVersion("dev-master")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsBranch() || !v.IsOpaqueBranch() {
		t.Fatalf("dev-master should be an opaque branch")
	}

	v2, err := ParseVersion("1.x-dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v2.IsBranch() || v2.IsOpaqueBranch() {
		t.Fatalf("1.x-dev should be a numeric (non-opaque) branch")
	}
	segs := v2.Segments()
	if segs[0] != 1 || segs[1] != branchFillSegment {
		t.Fatalf("1.x-dev segments = %v, want [1 %d ...]", segs, branchFillSegment)
	}
}

func TestVersionCompareOpaqueBranches(t *testing.T) {
	a, _ := ParseVersion("dev-feature-a")
	b, _ := ParseVersion("dev-feature-b")
	if a.Equal(b) {
		t.Fatalf("distinct opaque branches must not compare equal")
	}
	if !a.NotEqual(b) {
		t.Fatalf("distinct opaque branches must satisfy !=")
	}
	if a.Less(b) || b.Less(a) {
		t.Fatalf("distinct opaque branches must be unordered, neither Less")
	}

	same, _ := ParseVersion("dev-feature-a")
	if !a.Equal(same) {
		t.Fatalf("identical opaque branch names must compare equal")
	}
}

func TestVersionCompareOrdering(t *testing.T) {
	versions := []string{"1.0.0-dev", "1.0.0-alpha", "1.0.0-beta", "1.0.0-RC1", "1.0.0", "1.0.0-patch1"}
	for i := 0; i < len(versions)-1; i++ {
		a, _ := ParseVersion(versions[i])
		b, _ := ParseVersion(versions[i+1])
		if !a.Less(b) {
			t.Errorf("%s should sort before %s", versions[i], versions[i+1])
		}
	}
}

func TestVersionZeroAndInfinity(t *testing.T) {
	z := Zero()
	inf := Infinity()
	if !z.Less(inf) {
		t.Fatalf("Zero must sort before Infinity")
	}
	v, _ := ParseVersion("999.999.999")
	if !v.Less(inf) {
		t.Fatalf("Infinity must sort after any ordinary release version")
	}
	if inf.Less(z) {
		t.Fatalf("Infinity must never sort before Zero")
	}
}
