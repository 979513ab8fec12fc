package coupling

import "strings"

func dirsOf(p string) []string {
	parts := strings.Split(p, "/")
	return parts[:len(parts)-1]
}

// CommonRoots returns the number of leading directories a and b share.
func CommonRoots(a, b string) int {
	return commonPrefix(dirsOf(a), dirsOf(b))
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// Distance returns how far apart a and b are in the directory tree: 1 for
// files in the same directory, 2 for files in sibling directories, and so on.
func Distance(a, b string) int {
	da, db := dirsOf(a), dirsOf(b)
	c := commonPrefix(da, db)
	return max(len(da)-c, len(db)-c) + 1
}
