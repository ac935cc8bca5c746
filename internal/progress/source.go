package progress

import (
	"context"
	"math/rand/v2"
	"sync"

	"playlist-downloader/internal/domain"
)

// Complete is the progress value at which a task resolves as completed.
const Complete = 100

// DefaultMaxIncrement bounds a single simulated step.
const DefaultMaxIncrement = 10

// Source reports how far the transfer of a track has got. Advance is called once per
// tick with the last accepted value and returns the new value; an error fails the task.
type Source interface {
	Advance(ctx context.Context, track domain.Track, current int) (int, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, track domain.Track, current int) (int, error)

func (f SourceFunc) Advance(ctx context.Context, track domain.Track, current int) (int, error) {
	return f(ctx, track, current)
}

// RandomSource simulates transfer telemetry by adding a uniformly random step in
// [0, MaxIncrement] on every call.
type RandomSource struct {
	maxIncrement int
	mu           sync.Mutex
	rng          *rand.Rand
}

func NewRandomSource(maxIncrement int, seed uint64) *RandomSource {
	if maxIncrement <= 0 {
		maxIncrement = DefaultMaxIncrement
	}
	return &RandomSource{
		maxIncrement: maxIncrement,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *RandomSource) Advance(ctx context.Context, _ domain.Track, current int) (int, error) {
	if err := ctx.Err(); err != nil {
		return current, err
	}
	s.mu.Lock()
	step := s.rng.IntN(s.maxIncrement + 1)
	s.mu.Unlock()
	return Clamp(current, current+step), nil
}

// Clamp keeps next within [current, Complete] so progress never goes backwards.
func Clamp(current, next int) int {
	if next < current {
		next = current
	}
	if next > Complete {
		next = Complete
	}
	if next < 0 {
		next = 0
	}
	return next
}

var _ Source = (*RandomSource)(nil)
