// Package localcache implements a (hash,size) -> checksum lookup that
// lets netapi.FileChecksum skip the checksumfile API call for a file
// whose whole-file checksum it has already learned.
package localcache

import (
	"encoding/binary"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
)

// Cache maps a file's (hash,size) to the whole-file checksum already
// learned for it. Store is the goleveldb-backed production
// implementation; MemStore is an in-memory double for tests.
type Cache interface {
	Lookup(hash string, size uint64) (checksumHex string, ok bool, err error)
	Put(hash string, size uint64, checksumHex string) error
}

// Store is a goleveldb-backed Cache, keyed on size||hash so entries
// for files of the same content hash but different size never collide.
type Store struct {
	db *leveldb.DB
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func dbKey(hash string, size uint64) []byte {
	b := make([]byte, 8+len(hash))
	binary.BigEndian.PutUint64(b, size)
	copy(b[8:], hash)
	return b
}

func (s *Store) Lookup(hash string, size uint64) (string, bool, error) {
	v, err := s.db.Get(dbKey(hash, size), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

func (s *Store) Put(hash string, size uint64, checksumHex string) error {
	return s.db.Put(dbKey(hash, size), []byte(checksumHex), nil)
}
