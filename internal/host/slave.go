package host

import (
	"encoding/gob"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// ServeSlave implements the server half of the Remote wire protocol
// (spec.md §5, SPEC_FULL.md §7.1): it decodes call envelopes off rwc,
// dispatches them to a Local host, and writes back reply envelopes, until
// the peer closes the connection. This is the `--slave` entrypoint cmd/cpdup
// installs; the protocol framing itself mirrors Remote's call/reply types
// exactly, since both ends of spec.md's "remote protocol" pairing live in
// this package.
func ServeSlave(rwc io.ReadWriteCloser) error {
	s := &slaveServer{
		host:  Local{},
		files: map[string]File{},
		dirs:  map[string]Dir{},
		dec:   gob.NewDecoder(rwc),
		enc:   gob.NewEncoder(rwc),
	}
	return s.run()
}

type slaveServer struct {
	host  Local
	mu    sync.Mutex
	next  int
	files map[string]File
	dirs  map[string]Dir

	dec *gob.Decoder
	enc *gob.Encoder
}

func (s *slaveServer) run() error {
	for {
		var c call
		if err := s.dec.Decode(&c); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("cpdup: slave: recv: %w", err)
		}
		vals, err := s.dispatch(c)
		rep := reply{Values: vals}
		if err != nil {
			rep.Err = err.Error()
		}
		if err := s.enc.Encode(rep); err != nil {
			return fmt.Errorf("cpdup: slave: send: %w", err)
		}
	}
}

func (s *slaveServer) newHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return strconv.Itoa(s.next)
}

// dispatch mirrors Remote's op names one-for-one; argument order matches the
// corresponding roundTrip call in remote.go exactly.
func (s *slaveServer) dispatch(c call) ([]interface{}, error) {
	a := c.Args
	switch c.Op {
	case "stat":
		info, err := s.host.Stat(str(a[0]))
		return []interface{}{info}, err
	case "lstat":
		info, err := s.host.Lstat(str(a[0]))
		return []interface{}{info}, err
	case "open":
		f, err := s.host.Open(str(a[0]))
		return s.registerFile(f, err)
	case "create":
		f, err := s.host.Create(str(a[0]), u32(a[1]))
		return s.registerFile(f, err)
	case "read":
		f := s.files[str(a[0])]
		buf := make([]byte, i(a[1]))
		n, err := f.Read(buf)
		if err != nil && err != io.EOF {
			return nil, err
		}
		return []interface{}{buf[:n]}, nil
	case "write":
		f := s.files[str(a[0])]
		n, err := f.Write(a[1].([]byte))
		return []interface{}{n}, err
	case "close":
		f := s.files[str(a[0])]
		s.mu.Lock()
		delete(s.files, str(a[0]))
		s.mu.Unlock()
		return nil, f.Close()
	case "opendir":
		d, err := s.host.Opendir(str(a[0]))
		return s.registerDir(d, err)
	case "readdirnames":
		d := s.dirs[str(a[0])]
		names, err := d.Readdirnames(i(a[1]))
		if err != nil && err != io.EOF {
			return nil, err
		}
		return []interface{}{names}, nil
	case "closedir":
		d := s.dirs[str(a[0])]
		s.mu.Lock()
		delete(s.dirs, str(a[0]))
		s.mu.Unlock()
		return nil, d.Close()
	case "mkdir":
		return nil, s.host.Mkdir(str(a[0]), u32(a[1]))
	case "rmdir":
		return nil, s.host.Rmdir(str(a[0]))
	case "remove":
		return nil, s.host.Remove(str(a[0]))
	case "rename":
		return nil, s.host.Rename(str(a[0]), str(a[1]))
	case "link":
		return nil, s.host.Link(str(a[0]), str(a[1]))
	case "symlink":
		return nil, s.host.Symlink(str(a[0]), str(a[1]))
	case "readlink":
		target, err := s.host.Readlink(str(a[0]))
		return []interface{}{target}, err
	case "chmod":
		return nil, s.host.Chmod(str(a[0]), u32(a[1]))
	case "chown":
		return nil, s.host.Chown(str(a[0]), i(a[1]), i(a[2]))
	case "lchown":
		return nil, s.host.Lchown(str(a[0]), i(a[1]), i(a[2]))
	case "chflags":
		return nil, s.host.Chflags(str(a[0]), u32(a[1]))
	case "lchflags":
		return nil, s.host.Lchflags(str(a[0]), u32(a[1]))
	case "utimes":
		return nil, s.host.Utimes(str(a[0]), a[1].(time.Time), a[2].(time.Time))
	case "umask":
		return []interface{}{s.host.Umask(i(a[0]))}, nil
	default:
		return nil, fmt.Errorf("cpdup: slave: unknown op %q", c.Op)
	}
}

func (s *slaveServer) registerFile(f File, err error) ([]interface{}, error) {
	if err != nil {
		return nil, err
	}
	h := s.newHandle()
	s.mu.Lock()
	s.files[h] = f
	s.mu.Unlock()
	return []interface{}{h}, nil
}

func (s *slaveServer) registerDir(d Dir, err error) ([]interface{}, error) {
	if err != nil {
		return nil, err
	}
	h := s.newHandle()
	s.mu.Lock()
	s.dirs[h] = d
	s.mu.Unlock()
	return []interface{}{h}, nil
}

func str(v interface{}) string { s, _ := v.(string); return s }
func u32(v interface{}) uint32 { n, _ := v.(uint32); return n }
func i(v interface{}) int      { n, _ := v.(int); return n }

func init() {
	gob.Register(time.Time{})
}
