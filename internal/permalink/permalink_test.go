package permalink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/a/b", "/a/b/"},
		{"a//b/?x=1#frag", "/a/b/"},
		{"  /spaced/  ", "/spaced/"},
		{"/", "/"},
		{"///", "/"},
		{"", ""},
		{"   ", ""},
		{"/a/b/#only-fragment", "/a/b/"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"/a/b", "a//b/?x=1#frag", "x", "/deep//nested///path"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		base, href, want string
	}{
		{"/dsa/sorting/", "../heap/", "/dsa/heap/"},
		{"/dsa/sorting/", "quick", "/dsa/sorting/quick/"},
		{"/dsa/sorting/", "/trees/avl", "/trees/avl/"},
		{"/dsa/sorting/", "./", "/dsa/sorting/"},
		{"/dsa/sorting/", "../../../up", "/up/"},
		{"/dsa/sorting/", "merge/?v=2#proof", "/dsa/sorting/merge/"},
		{"/dsa/sorting/", "#top", "/dsa/sorting/"},
		{"/dsa/sorting/", "https://example.com/x", ""},
		{"/dsa/sorting/", "mailto:me@example.com", ""},
		{"/dsa/sorting/", "//example.com/x", ""},
		{"/dsa/", "café/", "/dsa/café/"},
		{"/dsa/graphs/", "../деревья/", "/dsa/деревья/"},
		{"/деревья/", "x/", "/деревья/x/"},
		{"/dsa/", "my note/", "/dsa/my note/"},
		{"/dsa/", "100%/", "/dsa/100%/"},
		{"/dsa/", "/куча", "/куча/"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.base, tc.href), "Resolve(%q, %q)", tc.base, tc.href)
	}
}

func TestIsExternal(t *testing.T) {
	assert.True(t, IsExternal("http://x"))
	assert.True(t, IsExternal("HTTPS://X"))
	assert.True(t, IsExternal("mailto:a@b"))
	assert.True(t, IsExternal("ftp://host/file"))
	assert.False(t, IsExternal("../sibling/"))
	assert.False(t, IsExternal("/abs/path/"))
}
