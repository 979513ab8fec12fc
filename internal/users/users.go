// Package users normalizes contributor identities found in commits.
//
// Identities compare case-insensitively on (name, email). The first casing
// seen is kept for display, so output depends only on commit order.
package users

import (
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/kornysietsma/polyglot-code-scanner/internal/backends/git"
)

// User is a display identity.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Key returns the case-folded identity used for equality.
func (u User) Key() string {
	return strings.ToLower(u.Name) + "\x00" + strings.ToLower(u.Email)
}

func (u User) empty() bool {
	return u.Name == "" && u.Email == ""
}

// Entry is a dictionary user with its id.
type Entry struct {
	ID   int  `json:"id"`
	User User `json:"user"`
}

// Dictionary assigns sequential ids to users in registration order.
type Dictionary struct {
	ids   map[string]int
	users []User
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{ids: make(map[string]int)}
}

// Register returns the id of u, adding it on first sight.
func (d *Dictionary) Register(u User) int {
	key := u.Key()
	if id, ok := d.ids[key]; ok {
		return id
	}
	id := len(d.users)
	d.ids[key] = id
	d.users = append(d.users, u)
	return id
}

// User returns the display form for id.
func (d *Dictionary) User(id int) (User, bool) {
	if id < 0 || id >= len(d.users) {
		return User{}, false
	}
	return d.users[id], true
}

// Len returns the number of distinct users.
func (d *Dictionary) Len() int {
	return len(d.users)
}

// Entries lists every user ordered by id.
func (d *Dictionary) Entries() []Entry {
	entries := make([]Entry, len(d.users))
	for i, u := range d.users {
		entries[i] = Entry{ID: i, User: u}
	}
	return entries
}

var coAuthorPattern = regexp.MustCompile(`(?im)^[ \t]*co-authored-by:[ \t]*([^<\r\n]*?)[ \t]*<([^>\r\n]*)>[ \t\r]*$`)

// CoAuthors parses Co-authored-by trailers from a commit message.
func CoAuthors(message string) []User {
	var found []User
	for _, m := range coAuthorPattern.FindAllStringSubmatch(message, -1) {
		u := User{Name: strings.TrimSpace(m[1]), Email: strings.TrimSpace(m[2])}
		if !u.empty() {
			found = append(found, u)
		}
	}
	return found
}

// Normalizer turns the raw identities of a commit into dictionary ids.
type Normalizer struct {
	dict   *Dictionary
	redact bool
}

// NewNormalizer creates a normalizer. With redact set, emails are replaced by
// a digest before registration.
func NewNormalizer(dict *Dictionary, redact bool) *Normalizer {
	return &Normalizer{dict: dict, redact: redact}
}

// Dictionary returns the dictionary the normalizer registers into.
func (n *Normalizer) Dictionary() *Dictionary {
	return n.dict
}

// CommitUsers returns the sorted, distinct ids of the author, committer and
// co-authors of c.
func (n *Normalizer) CommitUsers(c *git.Commit) []int {
	candidates := []User{
		{Name: strings.TrimSpace(c.Author.Name), Email: strings.TrimSpace(c.Author.Email)},
		{Name: strings.TrimSpace(c.Committer.Name), Email: strings.TrimSpace(c.Committer.Email)},
	}
	candidates = append(candidates, CoAuthors(c.Message)...)

	seen := make(map[int]bool, len(candidates))
	ids := make([]int, 0, len(candidates))
	for _, u := range candidates {
		if u.empty() {
			continue
		}
		if n.redact {
			u.Email = RedactEmail(u.Email)
		}
		id := n.dict.Register(u)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// RedactEmail replaces an email with the hex of the first 16 bytes of its
// BLAKE2b-256 digest. Case is folded first so equal emails stay equal.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:16])
}

// Union merges sorted id sets into one sorted set.
func Union(sets ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, s := range sets {
		for _, id := range s {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Ints(out)
	return out
}
