// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"sort"
	"sync"
)

// Ledger records outputs that have already been committed as inputs of a
// constructed transaction. It is advisory state: the node's own UTXO set
// remains authoritative, so unreadable backing content resets the ledger
// instead of failing.
//
// The in-memory set is always a superset of what was last persisted. A
// failed persist leaves the new entries in memory and reports
// ErrPersistence so the caller knows they are not durable.
//
// NOTE: All methods are safe for concurrent access.
type Ledger struct {
	mu      sync.Mutex
	outputs map[OutPoint]struct{}
	store   Store
	closed  bool
}

// Load opens the JSON ledger file at path, creating it if missing.
func Load(path string) (*Ledger, error) {
	store, err := OpenFileStore(path)
	if err != nil {
		return nil, err
	}

	l, err := New(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return l, nil
}

// LoadBolt opens the bbolt ledger database at path, creating it if missing.
func LoadBolt(path string) (*Ledger, error) {
	store, err := OpenBoltStore(path)
	if err != nil {
		return nil, err
	}

	l, err := New(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return l, nil
}

// New returns a ledger initialized from the content of store.
func New(store Store) (*Ledger, error) {
	outputs, err := store.Load()
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		outputs: make(map[OutPoint]struct{}, len(outputs)),
		store:   store,
	}
	for _, op := range outputs {
		l.outputs[op] = struct{}{}
	}

	log.Infof("Loaded %d committed %s", len(l.outputs),
		pickNoun(len(l.outputs), "output", "outputs"))

	return l, nil
}

// Contains returns whether op has been recorded.
func (l *Ledger) Contains(op OutPoint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.outputs[op]
	return ok
}

// FirstCommitted returns the first outpoint of ops, in order, that has been
// recorded.
func (l *Ledger) FirstCommitted(ops []OutPoint) (OutPoint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, op := range ops {
		if _, ok := l.outputs[op]; ok {
			return op, true
		}
	}

	return OutPoint{}, false
}

// InsertAll records ops and persists the full set before returning. If every
// outpoint was already recorded the store is left untouched.
func (l *Ledger) InsertAll(ops []OutPoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.insertLocked(ops)
}

// CommitIfAbsent records ops unless one of them is already recorded, checking
// and inserting under a single lock. It returns the first recorded outpoint
// and false when nothing was inserted.
func (l *Ledger) CommitIfAbsent(ops []OutPoint) (OutPoint, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, op := range ops {
		if _, ok := l.outputs[op]; ok {
			return op, false, nil
		}
	}

	return OutPoint{}, true, l.insertLocked(ops)
}

// insertLocked adds ops to the set and persists it. New entries stay in
// memory even if the save fails.
//
// NOTE: The caller must hold l.mu.
func (l *Ledger) insertLocked(ops []OutPoint) error {
	if l.closed {
		return ledgerError(ErrPersistence, "unable to insert outputs",
			ErrLedgerClosed)
	}

	var added int
	for _, op := range ops {
		if _, ok := l.outputs[op]; ok {
			continue
		}
		l.outputs[op] = struct{}{}
		added++
	}
	if added == 0 {
		return nil
	}

	if err := l.store.Save(l.sortedLocked()); err != nil {
		log.Errorf("Unable to persist %d new committed %s: %v", added,
			pickNoun(added, "output", "outputs"), err)
		return persistError("unable to save inserted outputs", err)
	}

	log.Debugf("Committed %d %s, %d tracked", added,
		pickNoun(added, "output", "outputs"), len(l.outputs))

	return nil
}

// Release removes ops from the ledger and persists the result. It is used
// when a transaction built from them is abandoned. Unknown outpoints are
// ignored. The entries are only dropped from memory once the reduced set is
// saved, so a failed release leaves them recorded.
func (l *Ledger) Release(ops []OutPoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ledgerError(ErrPersistence, "unable to release outputs",
			ErrLedgerClosed)
	}

	release := make(map[OutPoint]struct{}, len(ops))
	for _, op := range ops {
		if _, ok := l.outputs[op]; ok {
			release[op] = struct{}{}
		}
	}
	if len(release) == 0 {
		return nil
	}

	remaining := make([]OutPoint, 0, len(l.outputs)-len(release))
	for _, op := range l.sortedLocked() {
		if _, ok := release[op]; !ok {
			remaining = append(remaining, op)
		}
	}
	if err := l.store.Save(remaining); err != nil {
		log.Errorf("Unable to persist release of %d %s: %v",
			len(release), pickNoun(len(release), "output", "outputs"),
			err)
		return persistError("unable to save released outputs", err)
	}

	for op := range release {
		delete(l.outputs, op)
	}

	log.Debugf("Released %d %s, %d tracked", len(release),
		pickNoun(len(release), "output", "outputs"), len(l.outputs))

	return nil
}

// Outputs returns the recorded outpoints ordered by txid and index.
func (l *Ledger) Outputs() []OutPoint {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sortedLocked()
}

// Len returns the number of recorded outpoints.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.outputs)
}

// Close releases the backing store. Reads keep working on the in-memory
// set; mutations fail with ErrPersistence.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	return l.store.Close()
}

// sortedLocked returns the set as a sorted slice.
//
// NOTE: The caller must hold l.mu.
func (l *Ledger) sortedLocked() []OutPoint {
	outputs := make([]OutPoint, 0, len(l.outputs))
	for op := range l.outputs {
		outputs = append(outputs, op)
	}
	sort.Slice(outputs, func(i, j int) bool {
		return less(outputs[i], outputs[j])
	})

	return outputs
}

// persistError wraps a store failure as ErrPersistence unless it already
// carries that code.
func persistError(desc string, err error) error {
	if IsError(err, ErrPersistence) {
		return err
	}
	return ledgerError(ErrPersistence, desc, err)
}
