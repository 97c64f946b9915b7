package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBudgetExhausted is returned by Allow once the process-wide call
// ceiling has been reached. Callers treat it as a skippable condition:
// in-flight jobs stop early instead of failing.
var ErrBudgetExhausted = errors.New("catalog call budget exhausted")

// CallSink counts catalog calls and results independently of job-level
// counters, and optionally enforces a hard ceiling on total calls.
type CallSink interface {
	Allow() error
	RecordCall()
	RecordResults(n int)
	Stats() Stats
}

// Stats is a point-in-time snapshot of the sink's counters.
type Stats struct {
	Calls   int64 `json:"calls"`
	Results int64 `json:"results"`
	Refused int64 `json:"refused"`
	Budget  int64 `json:"budget"`
}

type memorySink struct {
	calls   atomic.Int64
	results atomic.Int64
	refused atomic.Int64
	budget  int64
}

func newMemorySink(budget int) *memorySink {
	return &memorySink{budget: int64(budget)}
}

func (s *memorySink) Allow() error {
	if s.budget > 0 && s.calls.Load() >= s.budget {
		s.refused.Add(1)
		return ErrBudgetExhausted
	}
	return nil
}

func (s *memorySink) RecordCall()         { s.calls.Add(1) }
func (s *memorySink) RecordResults(n int) { s.results.Add(int64(n)) }

func (s *memorySink) Stats() Stats {
	return Stats{
		Calls:   s.calls.Load(),
		Results: s.results.Load(),
		Refused: s.refused.Load(),
		Budget:  s.budget,
	}
}

type redisSink struct {
	client *redis.Client
	prefix string
	budget int64
}

func (s *redisSink) key(name string) string {
	return s.prefix + ":" + name
}

func (s *redisSink) Allow() error {
	if s.budget <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	calls, err := s.client.Get(ctx, s.key("calls")).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Counting must never block syncing when Redis is flaky.
		return nil
	}
	if calls >= s.budget {
		s.client.Incr(ctx, s.key("refused"))
		return ErrBudgetExhausted
	}
	return nil
}

func (s *redisSink) RecordCall() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.client.Incr(ctx, s.key("calls"))
}

func (s *redisSink) RecordResults(n int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.client.IncrBy(ctx, s.key("results"), int64(n))
}

func (s *redisSink) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	calls, _ := s.client.Get(ctx, s.key("calls")).Int64()
	results, _ := s.client.Get(ctx, s.key("results")).Int64()
	refused, _ := s.client.Get(ctx, s.key("refused")).Int64()
	return Stats{Calls: calls, Results: results, Refused: refused, Budget: s.budget}
}

// NewCallSink builds a Redis-backed sink and falls back to in-memory
// counters when Redis is unreachable. budget of 0 disables the ceiling.
func NewCallSink(addr, pass string, db, budget int) (CallSink, error) {
	if addr == "" {
		return newMemorySink(budget), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemorySink(budget), err
	}

	return &redisSink{
		client: client,
		prefix: "worksync:catalog",
		budget: int64(budget),
	}, nil
}

// NewMemorySink returns a purely in-memory sink, used by test
// harnesses that need a deterministic call ceiling.
func NewMemorySink(budget int) CallSink {
	return newMemorySink(budget)
}
