package db

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// Repository memoises content hashes by absolute path. An entry is only
// valid while the file keeps the size and modification time it was hashed with.
type Repository interface {
	Lookup(path string, size int64, modTime time.Time) ([]byte, bool)
	Store(path string, size int64, modTime time.Time, hash []byte) error
	Sweep(keep func(path string) bool) (int, error)
}

type entry struct {
	Size    int64  `json:"size"`
	MtimeNs int64  `json:"mtime_ns"`
	Hash    []byte `json:"hash"`
}

type BoltRepository struct {
	db     *bolt.DB
	logger *zap.Logger
}

func NewRepository(db *bolt.DB, logger *zap.Logger) (Repository, error) {
	if err := Init(db); err != nil {
		return nil, err
	}

	return &BoltRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *BoltRepository) Lookup(path string, size int64, modTime time.Time) ([]byte, bool) {
	var hash []byte

	err := r.db.View(func(tx *bolt.Tx) error {
		bytes := tx.Bucket(bucketName).Get([]byte(path))
		if bytes == nil {
			return nil
		}

		var e entry
		if err := json.Unmarshal(bytes, &e); err != nil {
			return err
		}

		if e.Size == size && e.MtimeNs == modTime.UnixNano() && len(e.Hash) > 0 {
			hash = e.Hash
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("Ignoring unreadable hash cache entry", zap.String("path", path), zap.Error(err))
		return nil, false
	}

	return hash, hash != nil
}

func (r *BoltRepository) Store(path string, size int64, modTime time.Time, hash []byte) error {
	marshalled, err := json.Marshal(&entry{Size: size, MtimeNs: modTime.UnixNano(), Hash: hash})
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(path), marshalled)
	})
}

// Sweep removes every entry whose path is rejected by keep.
func (r *BoltRepository) Sweep(keep func(path string) bool) (int, error) {
	var removed int

	err := r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errors.New("bucket doesn't exist")
		}

		var stale [][]byte
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if !keep(string(k)) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}

		return nil
	})

	return removed, err
}

// NopRepository caches nothing.
type NopRepository struct{}

func (NopRepository) Lookup(string, int64, time.Time) ([]byte, bool) { return nil, false }

func (NopRepository) Store(string, int64, time.Time, []byte) error { return nil }

func (NopRepository) Sweep(func(string) bool) (int, error) { return 0, nil }
