// Package resolve turns symbolic endpoint selectors into concrete
// migration names bounding a run.
package resolve

import (
	"errors"
	"log/slog"

	"github.com/adnansarkar/revmig/internal/catalog"
)

// ErrRange marks endpoint combinations that cannot be applied to a plan,
// such as a named boundary that does not exist in it.
var ErrRange = errors.New("unresolvable migration range")

// Selectors are the raw endpoint inputs. Name selectors always win over
// revision selectors for the same endpoint. Revision selectors are
// pointers so an unset selector is distinguishable from revision zero.
type Selectors struct {
	ToName   string
	FromName string
	ToRev    *int64
	FromRev  *int64
}

// Range bounds a run by migration name. An empty endpoint means no
// boundary: the run starts at the beginning or continues to the end of
// the ordered plan.
type Range struct {
	From string // exclusive; the run resumes after this migration
	To   string // inclusive
}

// Resolve maps selectors onto concrete names from the catalog.
//
// When both revision selectors are set and no name selectors are, the pair
// is honored only if it agrees with the run direction (to > from for up,
// to < from for down). A disagreeing pair resolves to no boundaries at all,
// which makes the run unrestricted; that fallback is kept for compatibility
// but logged as a warning since it is rarely what the caller meant.
func Resolve(cat *catalog.Catalog, sel Selectors, dir catalog.Direction, log *slog.Logger) Range {
	rng := Range{From: sel.FromName, To: sel.ToName}

	if sel.ToName == "" && sel.FromName == "" && sel.ToRev != nil && sel.FromRev != nil {
		consistent := *sel.ToRev > *sel.FromRev
		if dir == catalog.DirDown {
			consistent = *sel.ToRev < *sel.FromRev
		}
		if !consistent {
			if log != nil {
				log.Warn("revision range disagrees with run direction, running without boundaries",
					"to_rev", *sel.ToRev, "from_rev", *sel.FromRev, "direction", dir.String())
			}
			return Range{}
		}
		if m := cat.ByRevision(*sel.ToRev); m != nil {
			rng.To = m.Name
		}
		if m := cat.ByRevision(*sel.FromRev); m != nil {
			rng.From = m.Name
		}
		return rng
	}

	if sel.ToName == "" && sel.ToRev != nil {
		if m := cat.ByRevision(*sel.ToRev); m != nil {
			rng.To = m.Name
		}
	}
	if sel.FromName == "" && sel.FromRev != nil {
		if m := cat.ByRevision(*sel.FromRev); m != nil {
			rng.From = m.Name
		}
	}
	return rng
}
