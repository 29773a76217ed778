package host

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRemotePair wires a Remote straight to a ServeSlave goroutine over an
// in-memory duplex pipe, exercising the full client/server round trip
// without a real subprocess (spec.md §5's channel is "stream-oriented";
// net.Pipe satisfies that contract for a test).
func newRemotePair(t *testing.T) *Remote {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	go func() {
		_ = ServeSlave(serverConn)
	}()

	return NewRemote("test", clientConn)
}

func TestRemoteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a")
	r := newRemotePair(t)

	f, err := r.Create(path, 0o644)
	require.NoError(t, err)
	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, f.Close())

	f, err = r.Open(path)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	require.NoError(t, f.Close())

	info, err := r.Lstat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
}

func TestRemoteDirAndRename(t *testing.T) {
	dir := t.TempDir()
	r := newRemotePair(t)

	sub := filepath.Join(dir, "d")
	require.NoError(t, r.Mkdir(sub, 0o755))

	f, err := r.Create(filepath.Join(sub, "e"), 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	d, err := r.Opendir(sub)
	require.NoError(t, err)
	names, err := d.Readdirnames(-1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e"}, names)
	require.NoError(t, d.Close())

	target := filepath.Join(dir, "a")
	renamed := filepath.Join(dir, "b")
	f, err = r.Create(target, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, r.Rename(target, renamed))

	_, err = r.Stat(target)
	assert.Error(t, err)
	_, err = r.Stat(renamed)
	assert.NoError(t, err)
}

func TestRemoteMknodUnsupported(t *testing.T) {
	r := newRemotePair(t)
	err := r.Mknod("/dev/whatever", 0, 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}
