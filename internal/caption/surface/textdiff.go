package surface

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/captionsync/backend/internal/caption/segment"
)

// unitRuneBase maps each distinct sentence onto a private-use rune so the
// diff runs at sentence granularity.
const unitRuneBase = 0xE000

// DiffSnapshot builds the surface snapshot that corresponds to editing the
// sentences old into next. Unchanged sentences keep their index, replaced
// sentences are written into the index they replace, extra sentences become
// stray text and missing ones are simply absent.
func DiffSnapshot(old, next []string) Snapshot {
	ids := make(map[string]rune)
	encode := func(units []string) []rune {
		out := make([]rune, len(units))
		for i, u := range units {
			id, ok := ids[u]
			if !ok {
				id = rune(unitRuneBase + len(ids))
				ids[u] = id
			}
			out[i] = id
		}
		return out
	}
	a, b := encode(old), encode(next)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(a, b, false)

	var regions []Region
	var deleted []int
	var inserted []string
	oldPos, newPos := 0, 0

	flush := func() {
		n := len(deleted)
		if len(inserted) < n {
			n = len(inserted)
		}
		for k := 0; k < n; k++ {
			regions = append(regions, At(deleted[k], inserted[k]))
		}
		if len(inserted) > n {
			// one stray run; the observer splits it again on the separator
			regions = append(regions, Stray(segment.Join(inserted[n:], segment.Target)))
		}
		deleted, inserted = nil, nil
	}

	for _, d := range diffs {
		count := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			for k := 0; k < count; k++ {
				regions = append(regions, At(oldPos, next[newPos]))
				oldPos++
				newPos++
			}
		case diffmatchpatch.DiffDelete:
			for k := 0; k < count; k++ {
				deleted = append(deleted, oldPos)
				oldPos++
			}
		case diffmatchpatch.DiffInsert:
			for k := 0; k < count; k++ {
				inserted = append(inserted, next[newPos])
				newPos++
			}
		}
	}
	flush()

	return Snapshot{Regions: regions}
}
