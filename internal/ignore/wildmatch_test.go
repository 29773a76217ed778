package ignore

import "testing"

func TestWildMatch(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*.o", "foo.o", true},
		{"*.o", "foo.obj", false},
		{"*.o", "o", false},
		{"foo?bar", "fooXbar", true},
		{"foo?bar", "foobar", false},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "ac", false},
		{"*", "anything", true},
		{"*", "", true},
		{"literal", "literal", true},
		{"literal", "literalx", false},
		{"?", "a", true},
		{"?", "", false},
	}
	for _, c := range cases {
		if got := WildMatch(c.pattern, c.name); got != c.want {
			t.Errorf("WildMatch(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestIsWildcard(t *testing.T) {
	for _, s := range []string{"*.o", "foo?", "{a,b}", "[abc]", "a|b"} {
		if !IsWildcard(s) {
			t.Errorf("IsWildcard(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"plain", "foo.txt", "dir/name"} {
		if IsWildcard(s) {
			t.Errorf("IsWildcard(%q) = true, want false", s)
		}
	}
}
