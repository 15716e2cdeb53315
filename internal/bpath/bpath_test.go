package bpath

import "testing"

import "github.com/stretchr/testify/require"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		cwd, path, want string
	}{
		{"/", "/etc", "/etc"},
		{"/etc", "motd", "/etc/motd"},
		{"/bin", "../etc/motd", "/etc/motd"},
		{"/", "..", "/"},
		{"/a/b", "./c/./d", "/a/b/c/d"},
		{"/a/b", "/", "/"},
		{"/", "//etc///motd", "/etc/motd"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Canonicalize(c.cwd, c.path), "cwd=%q path=%q", c.cwd, c.path)
	}
}

func TestSplit(t *testing.T) {
	dir, name := Split("/")
	require.Equal(t, "/", dir)
	require.Equal(t, "", name)

	dir, name = Split("/etc/motd")
	require.Equal(t, "/etc", dir)
	require.Equal(t, "motd", name)

	dir, name = Split("/bin")
	require.Equal(t, "/", dir)
	require.Equal(t, "bin", name)
}

func TestComponents(t *testing.T) {
	require.Equal(t, []string{"etc", "motd"}, Components("/etc/motd"))
	require.Empty(t, Components("/"))
}
