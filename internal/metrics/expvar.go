package metrics

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// OpStats aggregates every observation of one resource operation.
type OpStats struct {
	Count    int64            `json:"count"`
	TotalMS  float64          `json:"total_ms"`
	MaxMS    float64          `json:"max_ms"`
	Outcomes map[string]int64 `json:"outcomes"`
}

// ExpvarSnapshot is a copy of the recorded stats keyed by "resource.op".
type ExpvarSnapshot struct {
	Operations map[string]OpStats `json:"operations"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// Expvar keeps process-local store stats and publishes them through expvar.
type Expvar struct {
	name string
	mu   sync.Mutex
	ops  map[string]*OpStats
}

// NewExpvar publishes a recorder under name, or under a generated
// projecttracker_store_N name when name is empty or already taken.
func NewExpvar(name string) *Expvar {
	for name == "" || expvar.Get(name) != nil {
		name = fmt.Sprintf("projecttracker_store_%d", expvarSeq.Add(1))
	}
	rec := &Expvar{name: name, ops: make(map[string]*OpStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar name the recorder is published under.
func (r *Expvar) Name() string { return r.name }

// Snapshot copies the current stats.
func (r *Expvar) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ExpvarSnapshot{Operations: make(map[string]OpStats, len(r.ops)), RecordedAt: time.Now().UTC()}
	for key, st := range r.ops {
		cp := *st
		cp.Outcomes = make(map[string]int64, len(st.Outcomes))
		for outcome, n := range st.Outcomes {
			cp.Outcomes[outcome] = n
		}
		out.Operations[key] = cp
	}
	return out
}

// Observe implements Recorder. Observations without an op are dropped.
func (r *Expvar) Observe(_ context.Context, resource, op string, err error, d time.Duration) {
	if op == "" {
		return
	}
	key := resource + "." + op
	ms := float64(d) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.ops[key]
	if !ok {
		st = &OpStats{Outcomes: make(map[string]int64, 2)}
		r.ops[key] = st
	}
	st.Count++
	st.TotalMS += ms
	if ms > st.MaxMS {
		st.MaxMS = ms
	}
	st.Outcomes[Outcome(err)]++
}
