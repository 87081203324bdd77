package apply

import (
	"sort"
	"sync"
)

// fileLocks serializes applies per file within the process. Two plans that
// touch overlapping files must never mutate concurrently; locks are
// acquired in sorted path order so overlapping applies cannot deadlock.
type fileLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFileLocks() *fileLocks {
	return &fileLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks every path and returns the release function. Paths are
// deduplicated and locked in sorted order.
func (f *fileLocks) acquire(paths []string) (release func()) {
	seen := make(map[string]bool, len(paths))
	var sorted []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			sorted = append(sorted, p)
		}
	}
	sort.Strings(sorted)

	var held []*sync.Mutex
	for _, p := range sorted {
		f.mu.Lock()
		lock, ok := f.locks[p]
		if !ok {
			lock = &sync.Mutex{}
			f.locks[p] = lock
		}
		f.mu.Unlock()

		lock.Lock()
		held = append(held, lock)
	}

	return func() {
		// Release in reverse acquisition order
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
