package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const sessionBucket = "Sessions"

// sessionRecord is the stored envelope for one session value.
type sessionRecord struct {
	Value   []byte `json:"value"`
	Expires int64  `json:"expires"` // unix seconds, 0 means no expiry
}

func (r sessionRecord) expired(now time.Time) bool {
	return r.Expires > 0 && now.Unix() >= r.Expires
}

// SessionStorage persists fiber sessions in BoltDB. It implements the
// fiber.Storage interface so it can back the session middleware directly.
type SessionStorage struct {
	db   *bbolt.DB
	stop chan struct{}
}

// NewSessionStorage opens (or creates) the session database under dataDir
// and starts a background sweep for expired entries.
func NewSessionStorage(dataDir string) (*SessionStorage, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "mailpeek.db")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %v", err)
	}

	s := &SessionStorage{db: db, stop: make(chan struct{})}
	go s.sweepLoop(10 * time.Minute)
	return s, nil
}

// Get returns the value for key, or nil if the key is missing or expired.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionBucket)).Get([]byte(key))
		if data == nil {
			return nil
		}

		var rec sessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			// Unreadable records count as absent; the sweeper removes them.
			return nil
		}
		if rec.expired(time.Now()) {
			return nil
		}

		value = append([]byte(nil), rec.Value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores the value under key. A zero exp keeps the entry until it is
// deleted explicitly.
func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	rec := sessionRecord{Value: val}
	if exp > 0 {
		rec.Expires = time.Now().Add(exp).Unix()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte(key), data)
	})
}

// Delete removes the entry for key. Missing keys are not an error.
func (s *SessionStorage) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete([]byte(key))
	})
}

// Reset drops every stored session.
func (s *SessionStorage) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(sessionBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
}

// Close stops the sweeper and closes the database connection.
func (s *SessionStorage) Close() error {
	close(s.stop)
	return s.db.Close()
}

func (s *SessionStorage) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stop:
			return
		}
	}
}

// sweep deletes expired and unreadable records in one pass.
func (s *SessionStorage) sweep(now time.Time) {
	s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))

		var stale [][]byte
		b.ForEach(func(k, v []byte) error {
			var rec sessionRecord
			if err := json.Unmarshal(v, &rec); err != nil || rec.expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
