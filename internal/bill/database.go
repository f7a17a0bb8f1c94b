package bill

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	billsBucket = "bills"
	pixIndex    = "idx_pix"
	lineIndex   = "idx_line"
	periodIndex = "idx_period"
)

var allBuckets = []string{billsBucket, pixIndex, lineIndex, periodIndex}

// DB defines the interface for bill persistence
type DB interface {
	// Admit inserts the bill unless a duplicate is already stored. The check
	// and the insert happen in one transaction.
	Admit(bill *Bill) (Admission, error)

	// FindDuplicate returns the stored bill sharing a fingerprint with bill, or nil
	FindDuplicate(bill *Bill) (*Bill, Match, error)

	// GetBill retrieves a bill by ID
	GetBill(id uint64) (*Bill, error)

	// ListBills returns the bills matching the filter, oldest first
	ListBills(filter Filter) ([]*Bill, error)

	// SetPaid flips the paid flag of a bill
	SetPaid(id uint64, paid bool, at time.Time) (*Bill, error)

	// Reset removes every bill and restarts the ID sequence
	Reset() error

	// Close closes the database connection
	Close() error
}

// fingerprint is one index entry identifying a bill
type fingerprint struct {
	bucket string
	key    []byte
	match  Match
}

// fingerprints returns the index entries of a bill in check order. Empty
// values never take part in a comparison.
func fingerprints(b *Bill) []fingerprint {
	var fps []fingerprint
	if b.PixPayload != "" {
		fps = append(fps, fingerprint{pixIndex, []byte(b.PixPayload), MatchPix})
	}
	if b.PaymentLine != "" {
		fps = append(fps, fingerprint{lineIndex, []byte(b.PaymentLine), MatchLine})
	}
	if b.Source != "" && b.ReferenceMonth != "" {
		fps = append(fps, fingerprint{periodIndex, []byte(b.Source + "\x00" + b.ReferenceMonth), MatchPeriod})
	}
	return fps
}

// BoltDB implements the DB interface using BoltDB. Every fingerprint kind has
// an index bucket mapping the fingerprint to the bill ID.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	if err := db.Update(createBuckets); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func createBuckets(tx *bbolt.Tx) error {
	for _, name := range allBuckets {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}
	return nil
}

// Admit stores the bill and its fingerprints when none of them is known yet.
// bbolt runs one writable transaction at a time, so two admissions of the
// same fingerprint cannot both insert.
func (b *BoltDB) Admit(bill *Bill) (Admission, error) {
	var admission Admission
	err := b.db.Update(func(tx *bbolt.Tx) error {
		existing, match, err := lookupDuplicate(tx, bill)
		if err != nil {
			return err
		}
		if existing != 0 {
			admission = Admission{DuplicateOf: existing, Match: match}
			return nil
		}

		bills := tx.Bucket([]byte(billsBucket))
		id, err := bills.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating id: %w", err)
		}

		stored := *bill
		stored.ID = id
		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}
		if err := bills.Put(itob(id), data); err != nil {
			return err
		}
		for _, fp := range fingerprints(&stored) {
			if err := tx.Bucket([]byte(fp.bucket)).Put(fp.key, itob(id)); err != nil {
				return err
			}
		}

		admission = Admission{Admitted: true, ID: id}
		return nil
	})
	if err != nil {
		return Admission{}, fmt.Errorf("admitting bill: %w", err)
	}
	if admission.Admitted {
		bill.ID = admission.ID
	}
	return admission, nil
}

// FindDuplicate returns the stored bill sharing a fingerprint with bill
func (b *BoltDB) FindDuplicate(bill *Bill) (*Bill, Match, error) {
	var (
		found *Bill
		match Match
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		id, m, err := lookupDuplicate(tx, bill)
		if err != nil || id == 0 {
			return err
		}
		found, err = getBill(tx, id)
		match = m
		return err
	})
	if err != nil {
		return nil, MatchNone, fmt.Errorf("finding duplicate: %w", err)
	}
	return found, match, nil
}

func lookupDuplicate(tx *bbolt.Tx, bill *Bill) (uint64, Match, error) {
	for _, fp := range fingerprints(bill) {
		bucket := tx.Bucket([]byte(fp.bucket))
		if bucket == nil {
			return 0, MatchNone, fmt.Errorf("missing bucket %s", fp.bucket)
		}
		if v := bucket.Get(fp.key); v != nil {
			return btoi(v), fp.match, nil
		}
	}
	return 0, MatchNone, nil
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(id uint64) (*Bill, error) {
	var bill *Bill
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		bill, err = getBill(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func getBill(tx *bbolt.Tx, id uint64) (*Bill, error) {
	data := tx.Bucket([]byte(billsBucket)).Get(itob(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	var bill Bill
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, fmt.Errorf("unmarshaling bill %d: %w", id, err)
	}
	return &bill, nil
}

// ListBills returns the bills matching the filter in ID order
func (b *BoltDB) ListBills(filter Filter) ([]*Bill, error) {
	bills := make([]*Bill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(billsBucket)).ForEach(func(k, v []byte) error {
			var bill Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			if filter.matches(&bill) {
				bills = append(bills, &bill)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// SetPaid updates the paid flag of a bill
func (b *BoltDB) SetPaid(id uint64, paid bool, at time.Time) (*Bill, error) {
	var bill *Bill
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		bill, err = getBill(tx, id)
		if err != nil {
			return err
		}
		bill.Paid = paid
		bill.UpdatedAt = at
		data, err := json.Marshal(bill)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}
		return tx.Bucket([]byte(billsBucket)).Put(itob(id), data)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// Reset drops and recreates every bucket, which also restarts the ID sequence
func (b *BoltDB) Reset() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		return createBuckets(tx)
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// itob encodes an ID as a big-endian key so that bbolt iterates in ID order
func itob(v uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, v)
	return key
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
