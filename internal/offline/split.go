package offline

import (
	"math"
	"math/rand"
	"sort"
)

// Split partitions trial paths by subject. A subject with a single trial goes
// wholly to test with probability 1-ratio. Larger groups are shuffled and
// their first floor(n*ratio) trials go to train.
//
// Groups are visited in sorted subject order so a fixed rng seed always gives
// the same split. A subject with several trials can end up in both partitions;
// LeakedSubjects reports which.
func Split(paths []string, ratio float64, rng *rand.Rand) (train, test []string) {
	groups := make(map[string][]string)
	for _, p := range paths {
		s := SubjectOf(p)
		groups[s] = append(groups[s], p)
	}

	subjects := make([]string, 0, len(groups))
	for s := range groups {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	for _, s := range subjects {
		group := groups[s]
		if len(group) == 1 {
			if rng.Float64() >= ratio {
				test = append(test, group...)
			} else {
				train = append(train, group...)
			}
			continue
		}

		sort.Strings(group)
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		cut := int(math.Floor(float64(len(group)) * ratio))
		train = append(train, group[:cut]...)
		test = append(test, group[cut:]...)
	}
	return train, test
}

// LeakedSubjects returns the sorted subjects present in both partitions.
func LeakedSubjects(train, test []string) []string {
	inTrain := make(map[string]struct{}, len(train))
	for _, p := range train {
		inTrain[SubjectOf(p)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var leaked []string
	for _, p := range test {
		s := SubjectOf(p)
		if _, ok := inTrain[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		leaked = append(leaked, s)
	}
	sort.Strings(leaked)
	return leaked
}
