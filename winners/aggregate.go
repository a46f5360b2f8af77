package winners

import (
	"bytes"
	"slices"
	"sort"
	"sync"

	"twabWinners/config"
	"twabWinners/prize"

	"github.com/ethereum/go-ethereum/common"
)

// Winner lists every prize slot one user won, keyed by tier
type Winner struct {
	User   common.Address     `json:"user"`
	Prizes map[uint8][]uint32 `json:"prizes"`
}

// Count returns the number of prize slots won
func (w Winner) Count() int {
	n := 0
	for _, indices := range w.Prizes {
		n += len(indices)
	}
	return n
}

// Aggregate collects win records from concurrent tier tasks
type Aggregate struct {
	mu     sync.Mutex
	byUser map[common.Address]map[uint8][]uint32
}

// NewAggregate creates an empty aggregate
func NewAggregate() *Aggregate {
	return &Aggregate{byUser: make(map[common.Address]map[uint8][]uint32)}
}

// Add merges records into the aggregate
func (a *Aggregate) Add(records []prize.WinRecord) {
	if len(records) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range records {
		prizes, ok := a.byUser[r.User]
		if !ok {
			prizes = make(map[uint8][]uint32)
			a.byUser[r.User] = prizes
		}
		prizes[r.Tier] = append(prizes[r.Tier], r.PrizeIndex)
	}
}

// Winners returns one entry per user with at least one win, sorted by
// address with ascending, distinct prize indices
func (a *Aggregate) Winners() []Winner {
	a.mu.Lock()
	defer a.mu.Unlock()

	winners := make([]Winner, 0, len(a.byUser))
	for user, prizes := range a.byUser {
		w := Winner{User: user, Prizes: make(map[uint8][]uint32, len(prizes))}
		for tier, indices := range prizes {
			sorted := slices.Clone(indices)
			slices.Sort(sorted)
			w.Prizes[tier] = slices.Compact(sorted)
		}
		winners = append(winners, w)
	}
	sort.Slice(winners, func(i, j int) bool {
		return bytes.Compare(winners[i].User[:], winners[j].User[:]) < 0
	})
	return winners
}

// ChunkSize is the number of users evaluated per call to the win check, so
// that users times prize slots stays within the per-chunk work budget
func ChunkSize(prizeCount uint32) int {
	if prizeCount == 0 {
		return config.MaxChunkSize
	}
	size := (config.ChunkWorkBudget + int(prizeCount) - 1) / int(prizeCount)
	return min(size, config.MaxChunkSize)
}
