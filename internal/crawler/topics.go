package crawler

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// IsURL reports whether topic is a literal absolute http(s) URL.
func IsURL(topic string) bool {
	return strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://")
}

// IsCandidateURL reports whether raw parses as an absolute http(s) URL with a host.
func IsCandidateURL(raw string) bool {
	if !IsURL(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Host != ""
}

// ReadTopics reads newline-delimited topics, trimming each line and skipping blanks.
func ReadTopics(r io.Reader) ([]string, error) {
	var topics []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		topics = append(topics, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan topics: %w", err)
	}
	return topics, nil
}

// LoadTopics reads the topic source file at path.
func LoadTopics(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("open topic source: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	topics, err := ReadTopics(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return topics, nil
}

// DedupTopics removes exact duplicates while keeping first-seen order.
func DedupTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
