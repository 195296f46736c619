package boardstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketBoards = []byte("boards")

// BboltStore implements Store using bbolt.
type BboltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBboltStore opens or creates a bbolt database at the given path.
func NewBboltStore(dbPath string) (*BboltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create board directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open board database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBoards); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketBoards, err)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BboltStore{db: db, now: time.Now}, nil
}

// Close releases the bbolt database.
func (s *BboltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func put(b *bolt.Bucket, board *Board) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	if err := b.Put([]byte(board.ID), data); err != nil {
		return fmt.Errorf("store board: %w", err)
	}
	return nil
}

func get(b *bolt.Bucket, id string) (*Board, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	board := &Board{}
	if err := json.Unmarshal(data, board); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", id, err)
	}
	return board, nil
}

// Create stores a new board. Returns ErrConflict if the ID is taken.
func (s *BboltStore) Create(_ context.Context, board *Board) error {
	if board.ID == "" {
		return fmt.Errorf("board ID is required")
	}
	now := s.now().UTC()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	board.UpdatedAt = now

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBoards)
		if b.Get([]byte(board.ID)) != nil {
			return fmt.Errorf("board %q: %w", board.ID, ErrConflict)
		}
		return put(b, board)
	})
}

// Get retrieves a board by ID. Returns ErrNotFound if missing.
func (s *BboltStore) Get(_ context.Context, id string) (*Board, error) {
	var board *Board
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		board, err = get(tx.Bucket(bucketBoards), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// Update reads, modifies and writes a board in a single transaction.
func (s *BboltStore) Update(_ context.Context, id string, fn func(*Board) error) (*Board, error) {
	var board *Board
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBoards)
		var err error
		board, err = get(b, id)
		if err != nil {
			return err
		}
		if err := fn(board); err != nil {
			return err
		}
		board.ID = id
		board.UpdatedAt = s.now().UTC()
		return put(b, board)
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// Delete removes a board. Returns ErrNotFound if missing.
func (s *BboltStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBoards)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

// List returns all boards, most recently updated first.
func (s *BboltStore) List(_ context.Context) ([]*Board, error) {
	var boards []*Board
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBoards).ForEach(func(k, v []byte) error {
			board := &Board{}
			if err := json.Unmarshal(v, board); err != nil {
				return fmt.Errorf("decode board %s: %w", k, err)
			}
			boards = append(boards, board)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(boards, func(i, j int) bool {
		return boards[i].UpdatedAt.After(boards[j].UpdatedAt)
	})
	return boards, nil
}

// PruneBefore deletes boards whose last update is older than t.
func (s *BboltStore) PruneBefore(_ context.Context, t time.Time) ([]string, error) {
	var pruned []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBoards)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var board Board
			if err := json.Unmarshal(v, &board); err != nil {
				return fmt.Errorf("decode board %s: %w", k, err)
			}
			if board.UpdatedAt.Before(t) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		// bbolt forbids mutating a bucket while iterating it.
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete board %s: %w", k, err)
			}
			pruned = append(pruned, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pruned, nil
}
