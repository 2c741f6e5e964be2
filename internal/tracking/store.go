package tracking

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketEvents = []byte("events")

// Store is the bbolt-backed append-only event log. Events are keyed by
// campaign ID, timestamp and a random suffix, so a prefix cursor scan yields
// one campaign's events in chronological order.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the event log at path.
func NewStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tracking directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open tracking store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one event. Events are never mutated or overwritten.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return putEvent(tx, ev)
	})
}

// BulkRecord appends a batch of events in a single transaction.
func (s *Store) BulkRecord(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, ev := range events {
			if ev.Timestamp.IsZero() {
				ev.Timestamp = time.Now()
			}
			if err := putEvent(tx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func putEvent(tx *bolt.Tx, ev Event) error {
	data, err := json.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := makeEventKey(ev.CampaignID, ev.Timestamp)
	if err := tx.Bucket(bucketEvents).Put(key, data); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// EventsByCampaign returns all events for one campaign in chronological order.
func (s *Store) EventsByCampaign(ctx context.Context, campaignID string) ([]Event, error) {
	events := []Event{}
	prefix := keyPrefix(campaignID)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				continue
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteCampaign removes every event of one campaign. Used when a campaign
// itself is deleted; normal operation never removes events.
func (s *Store) DeleteCampaign(ctx context.Context, campaignID string) error {
	prefix := keyPrefix(campaignID)

	return s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// makeEventKey builds "campaignID \x00 unixnano(8 bytes) uuid". The nul byte
// terminates the prefix so one campaign ID can never shadow another.
func makeEventKey(campaignID string, ts time.Time) []byte {
	key := keyPrefix(campaignID)
	var nano [8]byte
	binary.BigEndian.PutUint64(nano[:], uint64(ts.UnixNano()))
	key = append(key, nano[:]...)
	key = append(key, []byte(uuid.New().String())...)
	return key
}

func keyPrefix(campaignID string) []byte {
	return append([]byte(campaignID), 0x00)
}
