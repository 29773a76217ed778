package fsstat

import (
	"os"
	"testing"
	"time"
)

func TestKind(t *testing.T) {
	cases := []struct {
		mode os.FileMode
		want Kind
	}{
		{0o644, KindRegular},
		{os.ModeDir | 0o755, KindDirectory},
		{os.ModeSymlink | 0o777, KindSymlink},
		{os.ModeDevice | 0o660, KindBlockDev},
		{os.ModeDevice | os.ModeCharDevice | 0o660, KindCharDev},
		{os.ModeNamedPipe | 0o600, KindOther},
	}
	for _, c := range cases {
		if got := (Info{Mode: c.mode}).Kind(); got != c.want {
			t.Errorf("Info{Mode: %v}.Kind() = %v, want %v", c.mode, got, c.want)
		}
	}
}

func TestSameMetadata(t *testing.T) {
	base := Info{Mode: 0o644}
	if !SameMetadata(base, base) {
		t.Error("identical Info should report SameMetadata")
	}
	diffMode := base
	diffMode.Mode = 0o600
	if SameMetadata(base, diffMode) {
		t.Error("different Mode should not report SameMetadata")
	}

	withFlags := Info{Mode: 0o644, HasFlags: true, Flags: 1}
	otherFlags := Info{Mode: 0o644, HasFlags: true, Flags: 2}
	if SameMetadata(withFlags, otherFlags) {
		t.Error("different Flags (both sides reporting) should not report SameMetadata")
	}
}

func TestSameRegularFile(t *testing.T) {
	now := time.Now()
	a := Info{Size: 10, UID: 1, GID: 1, MTime: now}
	b := Info{Size: 10, UID: 1, GID: 1, MTime: now}
	if !SameRegularFile(a, b) {
		t.Error("identical regular file Info should match")
	}
	b.Size = 11
	if SameRegularFile(a, b) {
		t.Error("different Size should not match")
	}
}
