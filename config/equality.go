package config

import "net"

// Helpers shared by the package's StructuralEqual methods. spec.md §9
// asks for structural key projection rather than valve.py's
// deepcopy-and-mutate-then-compare pattern; these small pointer/net
// comparisons are the projection primitives every type's
// StructuralEqual builds on.

func ipNetStr(n *net.IPNet) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func u32PtrEq(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u16PtrEq(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u8PtrEq(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
