package host

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stallmanifold/cpdup/internal/fsstat"
)

// Remote routes every Host operation to a peer process over a stream-oriented
// request/response channel. The wire format is deliberately minimal
// (encoding/gob call framing): spec.md §1 places the real remote protocol
// wire format outside the core's scope, so this exists only to let the
// replicator exercise a genuine local/remote split end-to-end (e.g. over a
// pipe in tests), not to define a production protocol.
//
// The channel is strictly request/response: no pipelining (spec.md §5).
type Remote struct {
	name string
	mu   sync.Mutex
	enc  *gob.Encoder
	dec  *gob.Decoder
}

// call is the single request envelope sent over the wire; Args/Reply are
// interface{} so one envelope type serves every operation.
type call struct {
	Op   string
	Args []interface{}
}

type reply struct {
	Values []interface{}
	Err    string
}

var sigpipeOnce sync.Once

// NewRemote wraps rwc as a Host, ignoring SIGPIPE for the lifetime of the
// process: per spec.md §5 and the Design Notes (§9), a broken pipe to a
// remote peer must surface as a normal error return, not terminate the run.
// This is scoped to remote-client construction rather than done globally at
// startup, matching the re-architecture the design notes call for.
func NewRemote(name string, rwc io.ReadWriteCloser) *Remote {
	sigpipeOnce.Do(func() {
		signal.Ignore(syscall.SIGPIPE)
	})
	return &Remote{
		name: name,
		enc:  gob.NewEncoder(rwc),
		dec:  gob.NewDecoder(rwc),
	}
}

var _ Host = (*Remote)(nil)

func (r *Remote) Name() string { return "remote:" + r.name }

func (r *Remote) roundTrip(op string, args ...interface{}) ([]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(call{Op: op, Args: args}); err != nil {
		return nil, fmt.Errorf("cpdup: remote %s: send %s: %w", r.name, op, err)
	}
	var rep reply
	if err := r.dec.Decode(&rep); err != nil {
		return nil, fmt.Errorf("cpdup: remote %s: recv %s: %w", r.name, op, err)
	}
	if rep.Err != "" {
		return nil, fmt.Errorf("%s", rep.Err)
	}
	return rep.Values, nil
}

func (r *Remote) Stat(path string) (fsstat.Info, error) {
	vals, err := r.roundTrip("stat", path)
	if err != nil {
		return fsstat.Info{}, err
	}
	info, _ := vals[0].(fsstat.Info)
	return info, nil
}

func (r *Remote) Lstat(path string) (fsstat.Info, error) {
	vals, err := r.roundTrip("lstat", path)
	if err != nil {
		return fsstat.Info{}, err
	}
	info, _ := vals[0].(fsstat.Info)
	return info, nil
}

// remoteFile streams file I/O over dedicated read/write ops rather than
// opening a second connection: every Read/Write is its own round trip. This
// is intentionally simple (no pipelining, per spec.md §5) and costs one
// round trip per 64KiB block during copy (see internal/replicator).
type remoteFile struct {
	r      *Remote
	handle string
}

func (rf remoteFile) Read(p []byte) (int, error) {
	vals, err := rf.r.roundTrip("read", rf.handle, len(p))
	if err != nil {
		return 0, err
	}
	data, _ := vals[0].([]byte)
	n := copy(p, data)
	if n == 0 && len(data) == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (rf remoteFile) Write(p []byte) (int, error) {
	vals, err := rf.r.roundTrip("write", rf.handle, p)
	if err != nil {
		return 0, err
	}
	n, _ := vals[0].(int)
	return n, nil
}

func (rf remoteFile) Close() error {
	_, err := rf.r.roundTrip("close", rf.handle)
	return err
}

func (r *Remote) Open(path string) (File, error) {
	vals, err := r.roundTrip("open", path)
	if err != nil {
		return nil, err
	}
	handle, _ := vals[0].(string)
	return remoteFile{r: r, handle: handle}, nil
}

func (r *Remote) Create(path string, mode uint32) (File, error) {
	vals, err := r.roundTrip("create", path, mode)
	if err != nil {
		return nil, err
	}
	handle, _ := vals[0].(string)
	return remoteFile{r: r, handle: handle}, nil
}

type remoteDir struct {
	r      *Remote
	handle string
}

func (rd remoteDir) Readdirnames(n int) ([]string, error) {
	vals, err := rd.r.roundTrip("readdirnames", rd.handle, n)
	if err != nil {
		return nil, err
	}
	names, _ := vals[0].([]string)
	if len(names) == 0 {
		return nil, io.EOF
	}
	return names, nil
}

func (rd remoteDir) Close() error {
	_, err := rd.r.roundTrip("closedir", rd.handle)
	return err
}

func (r *Remote) Opendir(path string) (Dir, error) {
	vals, err := r.roundTrip("opendir", path)
	if err != nil {
		return nil, err
	}
	handle, _ := vals[0].(string)
	return remoteDir{r: r, handle: handle}, nil
}

func (r *Remote) Mkdir(path string, mode uint32) error {
	_, err := r.roundTrip("mkdir", path, mode)
	return err
}

func (r *Remote) Rmdir(path string) error {
	_, err := r.roundTrip("rmdir", path)
	return err
}

func (r *Remote) Remove(path string) error {
	_, err := r.roundTrip("remove", path)
	return err
}

func (r *Remote) Rename(oldpath, newpath string) error {
	_, err := r.roundTrip("rename", oldpath, newpath)
	return err
}

func (r *Remote) Link(oldpath, newpath string) error {
	_, err := r.roundTrip("link", oldpath, newpath)
	return err
}

func (r *Remote) Symlink(target, linkpath string) error {
	_, err := r.roundTrip("symlink", target, linkpath)
	return err
}

func (r *Remote) Readlink(path string) (string, error) {
	vals, err := r.roundTrip("readlink", path)
	if err != nil {
		return "", err
	}
	s, _ := vals[0].(string)
	return s, nil
}

func (r *Remote) Chmod(path string, mode uint32) error {
	_, err := r.roundTrip("chmod", path, mode)
	return err
}

func (r *Remote) Chown(path string, uid, gid int) error {
	_, err := r.roundTrip("chown", path, uid, gid)
	return err
}

func (r *Remote) Lchown(path string, uid, gid int) error {
	_, err := r.roundTrip("lchown", path, uid, gid)
	return err
}

func (r *Remote) Chflags(path string, flags uint32) error {
	_, err := r.roundTrip("chflags", path, flags)
	return err
}

func (r *Remote) Lchflags(path string, flags uint32) error {
	_, err := r.roundTrip("lchflags", path, flags)
	return err
}

func (r *Remote) Utimes(path string, atime, mtime time.Time) error {
	_, err := r.roundTrip("utimes", path, atime, mtime)
	return err
}

func (r *Remote) Umask(mask int) int {
	vals, err := r.roundTrip("umask", mask)
	if err != nil {
		return 0
	}
	prev, _ := vals[0].(int)
	return prev
}

// Mknod over a remote channel is explicitly unsupported: SPEC_FULL.md §7.1
// resolves spec.md §9's open question on remote device-node semantics by
// rejecting it outright rather than silently skipping the node.
func (r *Remote) Mknod(path string, mode uint32, dev uint64) error {
	return ErrUnsupported
}

func init() {
	gob.Register(fsstat.Info{})
	gob.Register(os.FileMode(0))
}
