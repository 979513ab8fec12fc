package git

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decoder turns raw bytes from commit objects into valid UTF-8. Invalid input
// is decoded as Windows-1252 so a scan never aborts on bad bytes.
type decoder struct {
	lossy int
}

func (d *decoder) text(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	d.lossy++
	out, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return out
}

func (d *decoder) signature(sig Signature) Signature {
	sig.Name = d.text(sig.Name)
	sig.Email = d.text(sig.Email)
	return sig
}

func (d *decoder) changes(changes []Change) []Change {
	for i := range changes {
		changes[i].Path = d.text(changes[i].Path)
		changes[i].OldPath = d.text(changes[i].OldPath)
	}
	return changes
}
