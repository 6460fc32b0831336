// Package meeting hands out pre-provisioned meeting room links.
package meeting

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"net/url"
	"strings"
)

// ErrEmptyPool is returned by Next when no links were loaded.
var ErrEmptyPool = errors.New("meeting: link pool is empty")

// Pool picks a link uniformly at random. It is read-only after construction,
// so concurrent Next calls need no locking. Two sessions may share a link.
type Pool struct {
	links []string
	pick  func(n int) int
}

// NewPool validates links and returns a Pool over them.
func NewPool(links []string) (*Pool, error) {
	cleaned := make([]string, 0, len(links))
	for i, link := range links {
		link = strings.TrimSpace(link)
		if err := ValidateLink(link); err != nil {
			return nil, fmt.Errorf("link %d: %w", i+1, err)
		}
		cleaned = append(cleaned, link)
	}
	return &Pool{links: cleaned, pick: rand.IntN}, nil
}

// LoadPool reads one link per line from r. Blank lines and lines starting
// with '#' are skipped.
func LoadPool(r io.Reader) (*Pool, error) {
	var links []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read link pool: %w", err)
	}
	return NewPool(links)
}

// LoadPoolFile opens name in fsys and parses it with LoadPool.
func LoadPoolFile(fsys fs.FS, name string) (*Pool, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open link pool: %w", err)
	}
	defer file.Close()
	return LoadPool(file)
}

// ValidateLink accepts https://meet.<provider>/<room-code>.
func ValidateLink(link string) error {
	parsed, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("meeting: invalid link %q: %w", link, err)
	}
	if parsed.Scheme != "https" || !strings.HasPrefix(parsed.Host, "meet.") || len(parsed.Host) <= len("meet.") {
		return fmt.Errorf("meeting: link %q must look like https://meet.<provider>/<room-code>", link)
	}
	if strings.Trim(parsed.Path, "/") == "" {
		return fmt.Errorf("meeting: link %q has no room code", link)
	}
	return nil
}

// Len reports the number of links in the pool.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.links)
}

// Next implements application.MeetingLinkProvider.
func (p *Pool) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Len() == 0 {
		return "", ErrEmptyPool
	}
	return p.links[p.pick(len(p.links))], nil
}
