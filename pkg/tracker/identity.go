package tracker

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// candidate is the resolver's view of a previously known identity: one that
// is not departed and therefore still inside its grace window.
type candidate struct {
	id       string
	name     string
	lastSeen time.Time
}

// assignment pairs one poll record with its resolved identity. minted marks
// identities created for this poll.
type assignment struct {
	record RawRecord
	id     string
	minted bool
}

// resolve maps this poll's ordered records onto the known identities.
//
// A record reuses an existing identity when the name matches a candidate not
// already claimed this poll; on a name collision the most-recently-seen
// candidate wins. Records left unmatched mint a fresh identity, so two
// records in the same poll can never share one. Known limitation: two
// simultaneous players with identical names and no distinguishing raw field
// may swap identities between polls.
func resolve(records []RawRecord, known []candidate) []assignment {
	// Most-recently-seen first, so the first unclaimed name match is the
	// tie-break winner.
	sorted := make([]candidate, len(known))
	copy(sorted, known)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].lastSeen.After(sorted[j].lastSeen)
	})

	claimed := make(map[string]bool, len(sorted))
	out := make([]assignment, 0, len(records))

	for _, rec := range records {
		matched := ""
		for _, cand := range sorted {
			if claimed[cand.id] || cand.name != rec.Name {
				continue
			}
			matched = cand.id
			break
		}

		if matched != "" {
			claimed[matched] = true
			out = append(out, assignment{record: rec, id: matched})
			continue
		}
		out = append(out, assignment{record: rec, id: uuid.NewString(), minted: true})
	}
	return out
}
