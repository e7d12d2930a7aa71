package util

import (
	"math"
	"math/rand"
	"sync"
)

const defaultExploration = 1.5

// Bandit chooses among named arms with the UCB1 rule: the mean reward of an
// arm plus a bonus that shrinks the more often the arm was played. Unplayed
// arms are tried first. Workers share one Bandit.
type Bandit struct {
	mu          sync.Mutex
	arms        []string
	plays       []int
	rewards     []float64
	total       int
	exploration float64
}

// NewBandit creates a bandit over arms. A non-positive exploration uses the
// default of 1.5.
func NewBandit(arms []string, exploration float64) *Bandit {
	if exploration <= 0 {
		exploration = defaultExploration
	}
	return &Bandit{
		arms:        append([]string(nil), arms...),
		plays:       make([]int, len(arms)),
		rewards:     make([]float64, len(arms)),
		exploration: exploration,
	}
}

// Pick returns the index of the next arm among those enabled; a nil mask
// enables every arm. With every arm masked a random index is returned.
func (b *Bandit) Pick(r *rand.Rand, enabled []bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	best, bestScore := -1, math.Inf(-1)
	for i := range b.arms {
		if !armEnabled(enabled, i) {
			continue
		}
		if b.plays[i] == 0 {
			return i
		}
		if s := b.score(i); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 {
		return best
	}
	if len(b.arms) == 0 {
		return 0
	}
	return r.Intn(len(b.arms))
}

func (b *Bandit) score(i int) float64 {
	mean := b.rewards[i] / float64(b.plays[i])
	return mean + b.exploration*math.Sqrt(math.Log(float64(b.total))/float64(b.plays[i]))
}

// Update credits reward to arm. Unknown arms are ignored.
func (b *Bandit) Update(arm int, reward float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if arm < 0 || arm >= len(b.arms) {
		return
	}
	b.plays[arm]++
	b.rewards[arm] += reward
	b.total++
}

// ArmStats is the state of one arm.
type ArmStats struct {
	Name  string  `json:"name"`
	Plays int     `json:"plays"`
	Mean  float64 `json:"mean"`
}

// Snapshot returns the arms in creation order.
func (b *Bandit) Snapshot() []ArmStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ArmStats, len(b.arms))
	for i, name := range b.arms {
		out[i] = ArmStats{Name: name, Plays: b.plays[i]}
		if b.plays[i] > 0 {
			out[i].Mean = b.rewards[i] / float64(b.plays[i])
		}
	}
	return out
}

func armEnabled(enabled []bool, i int) bool {
	return enabled == nil || i >= len(enabled) || enabled[i]
}
