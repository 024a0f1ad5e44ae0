package game

import (
	"sort"
	"time"
)

type scoreEntry struct {
	playerId string
	username string
	points   int
	joinedAt time.Time
}

// scoreboard accumulates per-player points for one session. Points only
// ever grow; ties rank the earliest joiner first.
type scoreboard struct {
	entries map[string]*scoreEntry
}

func newScoreboard(roster []*playerState) *scoreboard {
	b := &scoreboard{entries: make(map[string]*scoreEntry, len(roster))}
	for _, ps := range roster {
		b.entries[ps.id] = &scoreEntry{
			playerId: ps.id,
			username: ps.username,
			joinedAt: ps.joinedAt,
		}
	}
	return b
}

func (b *scoreboard) credit(playerId string, points int) {
	if points < 0 {
		return
	}
	if e, ok := b.entries[playerId]; ok {
		e.points += points
	}
}

func (b *scoreboard) points(playerId string) int {
	if e, ok := b.entries[playerId]; ok {
		return e.points
	}
	return 0
}

func (b *scoreboard) snapshotSorted() []RankedScore {
	sorted := make([]*scoreEntry, 0, len(b.entries))
	for _, e := range b.entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].points != sorted[j].points {
			return sorted[i].points > sorted[j].points
		}
		return sorted[i].joinedAt.Before(sorted[j].joinedAt)
	})

	ranking := make([]RankedScore, 0, len(sorted))
	for i, e := range sorted {
		ranking = append(ranking, RankedScore{
			PlayerId: e.playerId,
			Username: e.username,
			Points:   e.points,
			Rank:     i + 1,
		})
	}
	return ranking
}
