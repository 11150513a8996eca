// Package identity translates external platform identities into ledger
// usernames using static tables loaded once at startup.
package identity

import (
	"strings"

	"golang.org/x/text/cases"
)

// Directory holds the GitHub login and blog author tables. It is immutable
// after construction and safe for concurrent use.
type Directory struct {
	github  map[string]string
	authors map[string]string
}

// NewDirectory builds a Directory. GitHub logins are case-insensitive and
// stored folded; blog author ids are matched after trimming whitespace.
// Entries with an empty username are dropped.
func NewDirectory(githubLogins, blogAuthors map[string]string) *Directory {
	d := &Directory{
		github:  make(map[string]string, len(githubLogins)),
		authors: make(map[string]string, len(blogAuthors)),
	}
	for login, username := range githubLogins {
		if u := strings.TrimSpace(username); u != "" {
			d.github[foldLogin(login)] = u
		}
	}
	for id, username := range blogAuthors {
		if u := strings.TrimSpace(username); u != "" {
			d.authors[strings.TrimSpace(id)] = u
		}
	}
	return d
}

func foldLogin(login string) string {
	return cases.Fold().String(strings.TrimSpace(login))
}

// GitHubUser maps a GitHub login to a ledger username.
func (d *Directory) GitHubUser(login string) (string, bool) {
	if d == nil {
		return "", false
	}
	u, ok := d.github[foldLogin(login)]
	return u, ok
}

// BlogAuthor maps a blog author id to a ledger username.
func (d *Directory) BlogAuthor(authorID string) (string, bool) {
	if d == nil {
		return "", false
	}
	u, ok := d.authors[strings.TrimSpace(authorID)]
	return u, ok
}

// Size reports how many GitHub logins and blog authors are mapped.
func (d *Directory) Size() (githubLogins, blogAuthors int) {
	if d == nil {
		return 0, 0
	}
	return len(d.github), len(d.authors)
}
