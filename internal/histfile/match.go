package histfile

import (
	"fmt"
	"sort"
)

// Pair is one matched (setA file, setB file) correspondence.
type Pair struct {
	A string
	B string
}

// MatchResult accounts for every input file of a Match call. In the
// single-instance case each file appears exactly once, either in a pair or
// in one of the leftover sets.
type MatchResult struct {
	OnlyInA []string
	OnlyInB []string
	Pairs   []Pair
}

// Match computes pairwise correspondences between two history file sets for
// one model component.
//
// Files pair up when their normalized keys are equal. If one side uses
// ensemble-member naming (<stem>_NNNN<rest>) and its instance-stripped key
// set equals the other side's full key set, every member file is paired with
// the matching single-instance file instead. When instance naming is present
// but neither reconciliation condition holds, the plain key-equality result
// is returned as-is and the leftovers surface as missing counterparts.
func Match(model string, filesA, filesB []string, suffixA, suffixB string) (*MatchResult, error) {
	idsA, multiA, err := parseAll(model, filesA, suffixA)
	if err != nil {
		return nil, err
	}
	idsB, multiB, err := parseAll(model, filesB, suffixB)
	if err != nil {
		return nil, err
	}

	keysA := keySet(idsA)
	keysB := keySet(idsB)

	res := &MatchResult{}
	for _, id := range idsA {
		if _, ok := keysB[id.Key]; !ok {
			res.OnlyInA = append(res.OnlyInA, id.Raw)
		} else {
			res.Pairs = append(res.Pairs, Pair{A: id.Raw, B: keysB[id.Key]})
		}
	}
	for _, id := range idsB {
		if _, ok := keysA[id.Key]; !ok {
			res.OnlyInB = append(res.OnlyInB, id.Raw)
		}
	}
	sort.Strings(res.OnlyInA)
	sort.Strings(res.OnlyInB)
	sortPairs(res.Pairs)

	multiinst := multiA || multiB
	if multiinst {
		reconcileInstances(res, idsA, idsB, keysA, keysB)
	}

	if !multiinst {
		if len(res.Pairs)+len(res.OnlyInA) != len(filesA) {
			return nil, fmt.Errorf("internal: match accounting for set A: %d pairs + %d unmatched != %d files",
				len(res.Pairs), len(res.OnlyInA), len(filesA))
		}
		if len(res.Pairs)+len(res.OnlyInB) != len(filesB) {
			return nil, fmt.Errorf("internal: match accounting for set B: %d pairs + %d unmatched != %d files",
				len(res.Pairs), len(res.OnlyInB), len(filesB))
		}
	}

	return res, nil
}

// reconcileInstances handles comparing a multi-instance file set against a
// single-instance one. The reconciliation only fires when the instance-
// stripped keys of the multi side cover the other side's keys exactly.
func reconcileInstances(res *MatchResult, idsA, idsB []Identity, keysA, keysB map[string]string) {
	strippedA := strippedSet(idsA)
	strippedB := strippedSet(idsB)

	// A is multi-instance, B is not.
	if setEqual(strippedA, plainKeys(keysB)) {
		for _, a := range idsA {
			if !a.MultiInstance() {
				continue
			}
			b, ok := keysB[a.Stripped]
			if !ok {
				continue
			}
			res.Pairs = append(res.Pairs, Pair{A: a.Raw, B: b})
			res.OnlyInA = remove(res.OnlyInA, a.Raw)
			res.OnlyInB = remove(res.OnlyInB, b)
		}
	}

	// B is multi-instance, A is not.
	if setEqual(strippedB, plainKeys(keysA)) {
		for _, b := range idsB {
			if !b.MultiInstance() {
				continue
			}
			a, ok := keysA[b.Stripped]
			if !ok {
				continue
			}
			res.Pairs = append(res.Pairs, Pair{A: a, B: b.Raw})
			res.OnlyInA = remove(res.OnlyInA, a)
			res.OnlyInB = remove(res.OnlyInB, b.Raw)
		}
	}

	sortPairs(res.Pairs)
}

func parseAll(model string, files []string, suffix string) ([]Identity, bool, error) {
	ids := make([]Identity, 0, len(files))
	multi := false
	for _, f := range files {
		id, err := ParseName(model, f, suffix)
		if err != nil {
			return nil, false, err
		}
		if id.MultiInstance() {
			multi = true
		}
		ids = append(ids, id)
	}
	return ids, multi, nil
}

// keySet maps normalized key to the first original filename carrying it.
// Duplicate keys are not expected in well-formed inputs; the first
// representative wins.
func keySet(ids []Identity) map[string]string {
	m := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, ok := m[id.Key]; !ok {
			m[id.Key] = id.Raw
		}
	}
	return m
}

func strippedSet(ids []Identity) map[string]struct{} {
	m := make(map[string]struct{})
	for _, id := range ids {
		if id.MultiInstance() {
			m[id.Stripped] = struct{}{}
		}
	}
	return m
}

func plainKeys(keys map[string]string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for k := range keys {
		m[k] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func remove(list []string, item string) []string {
	for i, v := range list {
		if v == item {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
}
