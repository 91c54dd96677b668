// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"go.etcd.io/bbolt"
)

// boltOpenTimeout bounds how long OpenBoltStore waits for the file lock held
// by another process.
const boltOpenTimeout = 5 * time.Second

var (
	committedBucket = []byte("committed-outputs")

	// committedValue is stored under every key. Only key presence is
	// meaningful.
	committedValue = []byte{1}
)

// BoltStore persists the ledger in a bbolt database with one key per
// outpoint. Unlike FileStore, a Save is applied in a single bbolt
// transaction, so a crash leaves either the previous or the new set on disk.
type BoltStore struct {
	db *bbolt.DB
}

// A compile-time assertion to ensure BoltStore satisfies the Store interface.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: boltOpenTimeout,
	})
	if err != nil {
		str := fmt.Sprintf("unable to open ledger database %s", path)
		return nil, ledgerError(ErrPersistence, str, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(committedBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, ledgerError(ErrPersistence,
			"unable to create ledger bucket", err)
	}

	return &BoltStore{db: db}, nil
}

// outPointKeySize is the length of a serialized outpoint key.
const outPointKeySize = chainhash.HashSize + 4

// outPointKey serializes op as its 32 byte hash followed by the 4 byte
// little endian index, the same layout the wire encoding uses.
func outPointKey(op OutPoint) ([]byte, error) {
	wop, err := op.WireOutPoint()
	if err != nil {
		return nil, err
	}

	k := make([]byte, outPointKeySize)
	copy(k, wop.Hash[:])
	binary.LittleEndian.PutUint32(k[chainhash.HashSize:], wop.Index)

	return k, nil
}

// outPointFromKey reverses outPointKey.
func outPointFromKey(k []byte) (OutPoint, bool) {
	if len(k) != outPointKeySize {
		return OutPoint{}, false
	}

	hash, err := chainhash.NewHash(k[:chainhash.HashSize])
	if err != nil {
		return OutPoint{}, false
	}
	wop := wire.NewOutPoint(
		hash, binary.LittleEndian.Uint32(k[chainhash.HashSize:]),
	)

	return fromWire(*wop), true
}

// Load returns every outpoint in the bucket, skipping undecodable keys.
func (s *BoltStore) Load() ([]OutPoint, error) {
	var outputs []OutPoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(committedBucket)
		return b.ForEach(func(k, _ []byte) error {
			op, ok := outPointFromKey(k)
			if !ok {
				log.Warnf("Skipping undecodable ledger key %x", k)
				return nil
			}
			outputs = append(outputs, op)
			return nil
		})
	})
	if err != nil {
		return nil, ledgerError(ErrPersistence,
			"unable to read ledger database", err)
	}

	return outputs, nil
}

// Save replaces the bucket content with outputs in one transaction.
func (s *BoltStore) Save(outputs []OutPoint) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(committedBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucket(committedBucket)
		if err != nil {
			return err
		}

		for _, op := range outputs {
			k, err := outPointKey(op)
			if err != nil {
				return err
			}
			if err := b.Put(k, committedValue); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return ledgerError(ErrPersistence,
			"unable to write ledger database", err)
	}

	return nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return ledgerError(ErrPersistence,
			"unable to close ledger database", err)
	}

	return nil
}
