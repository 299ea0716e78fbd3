package planpb

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Field and enum value numbers derive from names so that adding a field never
// renumbers the existing ones.

func allocateFieldNumbers(fieldBuilders []*protobuilder.FieldBuilder) {
	names := make([]string, len(fieldBuilders))
	for i, fb := range fieldBuilders {
		names[i] = string(fb.Name())
	}
	for i, n := range hashNumbers(names) {
		fieldBuilders[i].SetNumber(protoreflect.FieldNumber(n))
	}
}

func allocateEnumValueNumbers(valueBuilders []*protobuilder.EnumValueBuilder) {
	names := make([]string, len(valueBuilders))
	for i, vb := range valueBuilders {
		names[i] = string(vb.Name())
	}
	for i, n := range hashNumbers(names) {
		valueBuilders[i].SetNumber(protoreflect.EnumNumber(n))
	}
}

const (
	maxNumber     = 31767
	reservedStart = 19000
	reservedEnd   = 19999
)

// hashNumbers maps each name to (FNV32a(name) % maxNumber) + 1, probing
// linearly past collisions and the reserved block. Names are processed in
// sorted order so collision resolution does not depend on declaration order.
func hashNumbers(names []string) []int {
	if len(names) == 0 {
		return nil
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return names[order[i]] < names[order[j]] })

	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	for _, idx := range order {
		start := int(fnv32(names[idx])%maxNumber) + 1
		cand := start
		for {
			if cand >= reservedStart && cand <= reservedEnd {
				cand = reservedEnd + 1
			}
			if !used[cand] {
				used[cand] = true
				out[idx] = cand
				break
			}
			cand++
			if cand > maxNumber {
				cand = 1
			}
			if cand == start {
				panic("hashNumbers: exhausted number space")
			}
		}
	}
	return out
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
