// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Store is the durable backing of a Ledger.
type Store interface {
	// Load returns every outpoint currently persisted. Unreadable
	// content yields an empty result rather than an error.
	Load() ([]OutPoint, error)

	// Save replaces the persisted content with outputs.
	Save(outputs []OutPoint) error

	// Close releases the underlying file handle.
	Close() error
}

// FileStore persists the ledger as a JSON array of outpoints in a single
// file that stays open for the lifetime of the store. Every Save is a full
// rewrite followed by an fsync.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// A compile-time assertion to ensure FileStore satisfies the Store interface.
var _ Store = (*FileStore)(nil)

// OpenFileStore opens path for reading and writing, creating it if it does
// not exist.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		str := fmt.Sprintf("unable to open ledger file %s", path)
		return nil, ledgerError(ErrPersistence, str, err)
	}

	return &FileStore{file: f, path: path}, nil
}

// Load decodes the file content. An empty file or content that is not a
// JSON outpoint array is treated as an empty ledger.
func (s *FileStore) Load() ([]OutPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil, ledgerError(ErrPersistence, "ledger file closed",
			ErrLedgerClosed)
	}

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		str := fmt.Sprintf("unable to seek ledger file %s", s.path)
		return nil, ledgerError(ErrPersistence, str, err)
	}
	data, err := io.ReadAll(s.file)
	if err != nil {
		str := fmt.Sprintf("unable to read ledger file %s", s.path)
		return nil, ledgerError(ErrPersistence, str, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var raw []OutPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warnf("Ledger file %s is unreadable, starting with an "+
			"empty ledger: %v", s.path, err)
		return nil, nil
	}

	outputs := make([]OutPoint, 0, len(raw))
	for _, r := range raw {
		op, err := NewOutPoint(r.Txid, r.Vout)
		if err != nil {
			log.Warnf("Skipping ledger entry in %s: %v", s.path, err)
			continue
		}
		outputs = append(outputs, op)
	}

	return outputs, nil
}

// Save truncates the file and writes outputs from the start, then flushes
// the file to stable storage.
func (s *FileStore) Save(outputs []OutPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ledgerError(ErrPersistence, "ledger file closed",
			ErrLedgerClosed)
	}

	if outputs == nil {
		outputs = []OutPoint{}
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return ledgerError(ErrPersistence, "unable to encode ledger", err)
	}

	if err := s.file.Truncate(0); err != nil {
		str := fmt.Sprintf("unable to truncate ledger file %s", s.path)
		return ledgerError(ErrPersistence, str, err)
	}
	if _, err := s.file.WriteAt(data, 0); err != nil {
		str := fmt.Sprintf("unable to write ledger file %s", s.path)
		return ledgerError(ErrPersistence, str, err)
	}
	if err := s.file.Sync(); err != nil {
		str := fmt.Sprintf("unable to sync ledger file %s", s.path)
		return ledgerError(ErrPersistence, str, err)
	}

	return nil
}

// Close closes the ledger file. It is safe to call more than once.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		str := fmt.Sprintf("unable to close ledger file %s", s.path)
		return ledgerError(ErrPersistence, str, err)
	}

	return nil
}
