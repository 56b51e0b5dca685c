package sst

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relab/sst/logging"
)

// Predicate examines the current state of a table and reports whether it
// holds. Predicates must not block: the scanner goroutine evaluates every
// registered predicate on each poll tick, and a slow predicate delays
// every other one sharing its table (§5).
type Predicate func(t *Table) bool

// Observer is invoked once a predicate holds.
type Observer func(t *Table)

// predicateKind distinguishes one-time predicates, which are removed
// after they first fire, from recurring predicates, which stay
// registered and may fire again on a later tick.
type predicateKind int

const (
	oneTime predicateKind = iota
	recurring
)

type registeredPredicate struct {
	id       uint64
	pred     Predicate
	observer Observer
	kind     predicateKind
	fired    bool
}

// PredicateHandle identifies a registered predicate for later removal.
type PredicateHandle uint64

// PredicateScanner polls a table on a fixed interval, evaluating every
// registered predicate in registration order and firing its observer on
// each tick the predicate holds (one-time predicates only on the first
// such tick) (§5). One scanner serves one table; construct one per Table.
type PredicateScanner struct {
	table  *Table
	logger *slog.Logger

	mu    sync.Mutex
	preds map[uint64]*registeredPredicate
	next  atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPredicateScanner constructs a scanner bound to table. It does not
// start polling until Start is called.
func NewPredicateScanner(table *Table, logger *slog.Logger) *PredicateScanner {
	return &PredicateScanner{
		table:  table,
		logger: logger,
		preds:  make(map[uint64]*registeredPredicate),
		done:   make(chan struct{}),
	}
}

// AddOneTimePredicate registers a predicate whose observer fires at most
// once: the first tick on which pred holds, after which it is
// automatically removed.
func (s *PredicateScanner) AddOneTimePredicate(pred Predicate, obs Observer) PredicateHandle {
	return s.add(pred, obs, oneTime)
}

// AddRecurringPredicate registers a predicate whose observer fires on
// every tick where pred holds, indefinitely, until explicitly removed.
func (s *PredicateScanner) AddRecurringPredicate(pred Predicate, obs Observer) PredicateHandle {
	return s.add(pred, obs, recurring)
}

func (s *PredicateScanner) add(pred Predicate, obs Observer, kind predicateKind) PredicateHandle {
	id := s.next.Add(1)
	s.mu.Lock()
	s.preds[id] = &registeredPredicate{id: id, pred: pred, observer: obs, kind: kind}
	s.mu.Unlock()
	return PredicateHandle(id)
}

// Remove unregisters a predicate, whether or not it has fired.
func (s *PredicateScanner) Remove(h PredicateHandle) {
	s.mu.Lock()
	delete(s.preds, uint64(h))
	s.mu.Unlock()
}

// Start launches the dedicated scanner goroutine, polling at
// table.tc.cfg.PollInterval until ctx is cancelled or Stop is called.
func (s *PredicateScanner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(ctx)
}

// Stop halts the scanner goroutine and waits for it to exit.
func (s *PredicateScanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *PredicateScanner) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.table.tc.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce()
		}
	}
}

func (s *PredicateScanner) scanOnce() {
	s.mu.Lock()
	snapshot := make([]*registeredPredicate, 0, len(s.preds))
	for _, p := range s.preds {
		if p.kind == oneTime && p.fired {
			continue
		}
		snapshot = append(snapshot, p)
	}
	s.mu.Unlock()
	// Handles are assigned in increasing order, so sorting by id evaluates
	// predicates in registration order.
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	for _, p := range snapshot {
		if !p.pred(s.table) {
			continue
		}
		p.observer(s.table)
		if p.kind == oneTime {
			s.mu.Lock()
			p.fired = true
			delete(s.preds, p.id)
			s.mu.Unlock()
			if s.logger != nil {
				s.logger.LogAttrs(context.Background(), slog.LevelDebug, "predicate: one-time fired", logging.Predicate(strconv.FormatUint(p.id, 10)))
			}
		}
	}
}
