package tracker

import (
	"fmt"
	"sort"
	"strings"
)

// defaultVolatileFields are raw fields excluded from the fingerprint because
// they change every poll regardless of player input. Connection time and
// ping both tick for a player who has not touched the keyboard.
var defaultVolatileFields = []string{"time", "ping"}

// fingerprint reduces a record's raw fields to a canonical string used for
// change detection. Volatile fields are dropped; the rest are emitted in
// sorted key order so map iteration order never produces a false change.
func fingerprint(raw map[string]any, volatile map[string]struct{}) string {
	if len(raw) == 0 {
		return ""
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		if _, skip := volatile[k]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", raw[k])
		b.WriteByte(';')
	}
	return b.String()
}

// volatileSet builds the exclusion set, falling back to the defaults when
// none are configured.
func volatileSet(fields []string) map[string]struct{} {
	if len(fields) == 0 {
		fields = defaultVolatileFields
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
