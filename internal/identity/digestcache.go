package identity

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"io"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/stallmanifold/cpdup/internal/rlog"
)

var digestBucket = []byte("digest")

// DigestCache is the digest channel's persistent store: a bbolt database
// keyed by the path the caller passes (the full destination path, not one
// relative to the destination root), holding (size, mtime, md5) tuples.
// Grounded on the teacher's go.mod dependency on go.etcd.io/bbolt (pulled in
// by rclone's cache/kv backends) rather than a hand-rolled file format —
// spec.md §1 places the *format* out of scope, but a real repository still
// needs a concrete store behind the interface.
//
// The hash itself uses stdlib crypto/md5: the teacher's own fs/hash package
// wraps this identical primitive for its "MD5" hash type, so there is no
// third-party library to reach for here (see DESIGN.md).
type DigestCache struct {
	db *bbolt.DB
}

var _ Checker = (*DigestCache)(nil)

// OpenDigestCache opens (creating if absent) the bbolt file at path.
func OpenDigestCache(path string) (*DigestCache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(digestBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DigestCache{db: db}, nil
}

type digestRecord struct {
	Size  int64
	MTime int64
	Sum   [md5.Size]byte
}

func encodeDigestRecord(r digestRecord) []byte {
	buf := make([]byte, 8+8+md5.Size)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Size))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.MTime))
	copy(buf[16:], r.Sum[:])
	return buf
}

func decodeDigestRecord(b []byte) (digestRecord, bool) {
	if len(b) != 8+8+md5.Size {
		return digestRecord{}, false
	}
	var r digestRecord
	r.Size = int64(binary.BigEndian.Uint64(b[0:8]))
	r.MTime = int64(binary.BigEndian.Uint64(b[8:16]))
	copy(r.Sum[:], b[16:])
	return r, true
}

func sumFile(path string) ([md5.Size]byte, int64, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return [md5.Size]byte{}, 0, time.Time{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return [md5.Size]byte{}, 0, time.Time{}, err
	}

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return [md5.Size]byte{}, 0, time.Time{}, err
	}
	var sum [md5.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum, fi.Size(), fi.ModTime(), nil
}

// Check computes src's digest and compares it against the cached record for
// dstPath. If dstPath == "" it only warms the cache for src (spec.md §4.9's
// refresh-only mode).
func (c *DigestCache) Check(srcPath, dstPath string) (Result, error) {
	sum, size, mtime, err := sumFile(srcPath)
	if err != nil {
		return Unknown, err
	}
	if dstPath == "" {
		return c.store(srcPath, sum, size, mtime)
	}
	key := []byte(dstPath)
	var rec digestRecord
	var found bool
	err = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(digestBucket).Get(key)
		rec, found = decodeDigestRecord(b)
		return nil
	})
	if err != nil {
		return Unknown, err
	}
	if !found {
		return Unknown, nil
	}
	if rec.Size != size || rec.MTime != mtime.Unix() {
		return Unknown, nil
	}
	if !bytes.Equal(rec.Sum[:], sum[:]) {
		rlog.Warnf(dstPath, "%s md5-CHECK-FAILED", dstPath)
		return Different, nil
	}
	return Equal, nil
}

func (c *DigestCache) store(path string, sum [md5.Size]byte, size int64, mtime time.Time) (Result, error) {
	rec := digestRecord{Size: size, MTime: mtime.Unix(), Sum: sum}
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(digestBucket).Put([]byte(path), encodeDigestRecord(rec))
	})
	return Unknown, err
}

// Update recomputes and stores path's digest record, called after a
// successful copy so the cache reflects the new destination content.
func (c *DigestCache) Update(path string) error {
	sum, size, mtime, err := sumFile(path)
	if err != nil {
		return err
	}
	_, err = c.store(path, sum, size, mtime)
	return err
}

func (c *DigestCache) Close() error { return c.db.Close() }
