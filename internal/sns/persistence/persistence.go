// Package persistence writes and recovers SNS user state on disk: one
// ⟨username⟩.usr file per account, rewritten in full on every change, and
// an append-only server.dat index of every username that has ever existed.
//
// File encoding is treated as a black box beyond what affects recovery
// (per spec, "on-disk file encoding details" are an out-of-scope external
// collaborator): the format here is a plain line-oriented text layout,
// good enough to round-trip a User but not meant to be read by anything
// else.
package persistence

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/barnden/roomline/internal/sns/user"
)

const (
	sectionFollowers = "FOLLOWERS"
	sectionFollowing = "FOLLOWING"
	sectionPosts     = "POSTS"
	sectionEnd       = "END"
)

// Store persists User snapshots under a root directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) userFile(name string) string {
	return filepath.Join(s.dir, name+".usr")
}

func (s *Store) indexFile() string {
	return filepath.Join(s.dir, "server.dat")
}

// IndexAppend appends name to the global index, recording that the account
// now exists. Called once, at account creation.
func (s *Store) IndexAppend(name string) error {
	f, err := os.OpenFile(s.indexFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: open index: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, name)
	return err
}

// IndexNames reads every username ever recorded in the index, in the order
// they were created. Duplicate lines (there should be none) are
// deduplicated, keeping first occurrence.
func (s *Store) IndexNames() ([]string, error) {
	f, err := os.Open(s.indexFile())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: open index: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, scanner.Err()
}

// Save rewrites u's .usr file in full: username, followers, following,
// posts-as-triples.
func (s *Store) Save(u *user.User) error {
	tmp := s.userFile(u.Name) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persistence: create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, u.Name)

	fmt.Fprintln(w, sectionFollowers)
	for _, name := range u.Followers() {
		fmt.Fprintln(w, name)
	}
	fmt.Fprintln(w, sectionEnd)

	fmt.Fprintln(w, sectionFollowing)
	for _, name := range u.Following() {
		fmt.Fprintln(w, name)
	}
	fmt.Fprintln(w, sectionEnd)

	fmt.Fprintln(w, sectionPosts)
	for _, p := range u.RecentPosts() {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Author, p.Timestamp, escapePostText(p.Text))
	}
	fmt.Fprintln(w, sectionEnd)

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("persistence: write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persistence: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.userFile(u.Name))
}

// Snapshot is the data recovered from a .usr file, enough to reconstruct a
// User without re-deriving its follow graph from other users' files.
type Snapshot struct {
	Name      string
	Followers []string
	Following []string
	Posts     []user.Post // oldest-first, ready for PushPost replay
}

// Load reads name's .usr file back into a Snapshot. Returns
// os.ErrNotExist if the file is missing (e.g. a username present in the
// index whose .usr file was never written, which should not happen in
// practice but is handled defensively during recovery).
func (s *Store) Load(name string) (*Snapshot, error) {
	f, err := os.Open(s.userFile(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	snap := &Snapshot{Name: name}

	if !scanner.Scan() {
		return nil, fmt.Errorf("persistence: %s: empty file", name)
	}
	snap.Name = strings.TrimSpace(scanner.Text())

	section := ""
	var posts []user.Post
	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case sectionFollowers, sectionFollowing, sectionPosts:
			section = line
			continue
		case sectionEnd:
			section = ""
			continue
		}
		switch section {
		case sectionFollowers:
			snap.Followers = append(snap.Followers, strings.TrimSpace(line))
		case sectionFollowing:
			snap.Following = append(snap.Following, strings.TrimSpace(line))
		case sectionPosts:
			p, err := parsePostLine(line)
			if err != nil {
				return nil, fmt.Errorf("persistence: %s: %w", name, err)
			}
			posts = append(posts, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// posts were written most-recent-first; reverse to oldest-first so a
	// caller can replay via PushPost and land on the same ordering.
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	snap.Posts = posts
	return snap, nil
}

func escapePostText(text string) string {
	return strings.NewReplacer("\n", "\\n", "\t", "\\t").Replace(text)
}

func unescapePostText(text string) string {
	return strings.NewReplacer("\\n", "\n", "\\t", "\t").Replace(text)
}

func parsePostLine(line string) (user.Post, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return user.Post{}, fmt.Errorf("malformed post line %q", line)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return user.Post{}, fmt.Errorf("malformed post timestamp %q: %w", parts[1], err)
	}
	return user.Post{Author: parts[0], Timestamp: ts, Text: unescapePostText(parts[2])}, nil
}
