package identity

import (
	"encoding/binary"
	"time"

	"go.etcd.io/bbolt"

	"github.com/stallmanifold/cpdup/internal/rlog"
)

var fscidBucket = []byte("fscid")

// FSCIDCache is the filesystem-content-id channel's persistent store: a
// bbolt database keyed by the destination path as the caller passes it
// (the full path below the destination root, not a root-relative one),
// holding the source's
// opaque content id at the time it was last copied (spec.md's "Filesystem
// content id" glossary entry — changes when content, or a directory's
// children's content, changes, giving an O(1) subtree-unchanged check).
type FSCIDCache struct {
	db *bbolt.DB
}

// OpenFSCIDCache opens (creating if absent) the bbolt file at path.
func OpenFSCIDCache(path string) (*FSCIDCache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fscidBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &FSCIDCache{db: db}, nil
}

// CheckID compares a source content id already obtained via fsstat.Info
// against the cached value for dstPath, without re-reading the source. This
// is the shape the replicator actually calls (it already has the source
// stat). FSCIDCache has no path-based Check and does not implement Checker.
func (c *FSCIDCache) CheckID(srcContentID uint64, dstPath string) (Result, error) {
	key := []byte(dstPath)
	var (
		cached uint64
		found  bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(fscidBucket).Get(key)
		if len(b) == 8 {
			cached = binary.BigEndian.Uint64(b)
			found = true
		}
		return nil
	})
	if err != nil {
		return Unknown, err
	}
	if !found {
		return Unknown, nil
	}
	if cached != srcContentID {
		rlog.Warnf(dstPath, "%s fsmid-CHECK-FAILED", dstPath)
		return Different, nil
	}
	return Equal, nil
}

// UpdateID stores srcContentID as path's cached value.
func (c *FSCIDCache) UpdateID(path string, srcContentID uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, srcContentID)
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(fscidBucket).Put([]byte(path), buf)
	})
}

func (c *FSCIDCache) Close() error { return c.db.Close() }
