// Package lock serializes chart mutations per tree root.
package lock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
)

// RootsKey guards creation of roots and moves to the top level.
const RootsKey = "chart:roots"

// ErrNotObtained is returned when a lock could not be taken before the retry budget ran out.
var ErrNotObtained = errors.New("lock not obtained")

// RootKey guards every mutation inside the subtree of the given root.
func RootKey(rootID uuid.UUID) string { return "chart:root:" + rootID.String() }

// Release frees locks taken by Acquire.
type Release func()

// Locker takes a set of named locks. Keys are taken in sorted order.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

// normalize sorts and de-duplicates keys.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
