package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"burstq/internal/runner"
)

const (
	BucketRuns  = "runs"
	BucketIndex = "run_ids"
)

var ErrNotFound = errors.New("run not found")

// BoltStore archives completed runs. Keys in the runs bucket are the
// completion timestamp followed by the run ID, so a cursor walks them in
// completion order.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketRuns)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(BucketIndex))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func runKey(res runner.RunResult) []byte {
	return []byte(res.EndTime.UTC().Format("20060102T150405.000000000Z") + "_" + res.ID)
}

// Archive implements runner.Archiver.
func (s *BoltStore) Archive(_ context.Context, res runner.RunResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	key := runKey(res)

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(BucketRuns)).Put(key, data); err != nil {
			return err
		}
		return tx.Bucket([]byte(BucketIndex)).Put([]byte(res.ID), key)
	})
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *BoltStore) List(limit int) ([]runner.RunResult, error) {
	var items []runner.RunResult

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item runner.RunResult
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			items = append(items, item)
			if limit > 0 && len(items) >= limit {
				break
			}
		}
		return nil
	})
	return items, err
}

func (s *BoltStore) Get(id string) (*runner.RunResult, error) {
	var item runner.RunResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(BucketIndex)).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		v := tx.Bucket([]byte(BucketRuns)).Get(key)
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
