package discovery

import (
	"cmp"
	"slices"
	"strconv"

	"flowlens/internal/board"
	"flowlens/internal/eventlog"
)

// StatusRef identifies a status seen in issue histories.
type StatusRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func refOf(c eventlog.ChangeEvent) StatusRef {
	return StatusRef{ID: c.ValueID, Name: c.Value}
}

func oldRefOf(c eventlog.ChangeEvent) StatusRef {
	return StatusRef{ID: c.OldValueID, Name: c.OldValue}
}

func (r StatusRef) key() string {
	if r.ID != 0 {
		return "id:" + strconv.Itoa(r.ID)
	}
	return "name:" + r.Name
}

// StatusOrder derives the workflow backbone from temporal precedence across all issues: a status ranks
// before another when it appears earlier in more issues than it appears later.
func StatusOrder(issues []*eventlog.Issue) []StatusRef {
	if len(issues) == 0 {
		return nil
	}

	// 1. Build the precedence matrix
	refs := make(map[string]StatusRef)
	entryCounts := make(map[string]int)
	precedes := make(map[string]map[string]int)

	for _, issue := range issues {
		var sequence []string
		seen := make(map[string]bool)
		visit := func(r StatusRef) {
			if r.ID == 0 && r.Name == "" {
				return
			}
			k := r.key()
			refs[k] = r
			if !seen[k] {
				seen[k] = true
				sequence = append(sequence, k)
			}
		}

		for i, c := range issue.StatusChanges() {
			if i == 0 {
				if c.Artificial {
					entryCounts[refOf(c).key()]++
				} else {
					visit(oldRefOf(c))
				}
			}
			visit(refOf(c))
		}

		for i := 0; i < len(sequence); i++ {
			for j := i + 1; j < len(sequence); j++ {
				a, b := sequence[i], sequence[j]
				if precedes[a] == nil {
					precedes[a] = make(map[string]int)
				}
				precedes[a][b]++
			}
		}
	}

	// 2. Score every status by how many others it globally precedes
	type statusInfo struct {
		key        string
		score      int
		birthCount int
	}
	infos := make([]statusInfo, 0, len(refs))
	for s := range refs {
		score := 0
		for other := range refs {
			if s != other && precedes[s][other] > precedes[other][s] {
				score++
			}
		}
		infos = append(infos, statusInfo{key: s, score: score, birthCount: entryCounts[s]})
	}

	// 3. Sort by precedence, then entry frequency, then key for determinism
	slices.SortFunc(infos, func(a, b statusInfo) int {
		if a.score != b.score {
			return cmp.Compare(b.score, a.score)
		}
		if a.birthCount != b.birthCount {
			return cmp.Compare(b.birthCount, a.birthCount)
		}
		return cmp.Compare(a.key, b.key)
	})

	order := make([]StatusRef, len(infos))
	for i, info := range infos {
		order[i] = refs[info.key]
	}
	return order
}

// UnmappedStatuses returns the statuses used by the issues that no visible column of the board holds,
// in workflow order. Reports show them as a trailing "unmapped" column.
func UnmappedStatuses(issues []*eventlog.Issue, b *board.Board) []StatusRef {
	if b == nil {
		return nil
	}
	var unmapped []StatusRef
	for _, ref := range StatusOrder(issues) {
		if ref.ID == 0 || slices.Contains(b.BacklogStatusIDs, ref.ID) {
			continue
		}
		if b.ColumnIndexOf(ref.ID) < 0 {
			unmapped = append(unmapped, ref)
		}
	}
	return unmapped
}
