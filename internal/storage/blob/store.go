// Package blob persists documents as newline-delimited JSON shards in an
// object bucket. Every committed batch becomes one immutable object, so the
// layout can be consumed directly by downstream dataset tooling.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
	iduuid "github.com/JakeFAU/datasetcrawler/internal/id/uuid"
)

// ShardSuffix is appended to every shard object name.
const ShardSuffix = ".jsonl"

// Bucket is the object storage the store writes shards to. List returns
// object names under prefix in lexical order.
type Bucket interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Store implements crawler.DocumentStore over a Bucket.
type Store struct {
	bucket Bucket
	prefix string
	now    func() time.Time
	ids    iduuid.Generator
}

// New returns a Store writing shards below prefix.
func New(bucket Bucket, prefix string) *Store {
	return &Store{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

type line struct {
	SourceTopic string    `json:"source_topic"`
	SourceURL   string    `json:"source_url"`
	Text        string    `json:"text_content"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Init is a no-op; bucket constructors verify access.
func (s *Store) Init(context.Context) error { return nil }

// InsertBatch writes records as a single shard. An empty batch writes
// nothing.
func (s *Store) InsertBatch(ctx context.Context, records []crawler.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := s.now().UTC()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(line{
			SourceTopic: rec.SourceTopic,
			SourceURL:   rec.SourceURL,
			Text:        rec.Text,
			ScrapedAt:   now,
		}); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate shard id: %w", err)
	}
	name := s.shardName(now, id)
	if err := s.bucket.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("put shard %s: %w", name, err)
	}
	return nil
}

func (s *Store) shardName(now time.Time, id uuid.UUID) string {
	base := fmt.Sprintf("%s-%s%s", now.Format("20060102T150405Z"), id, ShardSuffix)
	if s.prefix == "" {
		return base
	}
	return path.Join(s.prefix, base)
}

// ScanText streams every stored text, shard by shard, until fn fails.
func (s *Store) ScanText(ctx context.Context, fn func(string) error) error {
	return s.each(ctx, func(l line) error { return fn(l.Text) })
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.each(ctx, func(line) error {
		n++
		return nil
	})
	return n, err
}

// Close releases the bucket.
func (s *Store) Close() error {
	if err := s.bucket.Close(); err != nil {
		return fmt.Errorf("close bucket: %w", err)
	}
	return nil
}

func (s *Store) each(ctx context.Context, fn func(line) error) error {
	listPrefix := s.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	names, err := s.bucket.List(ctx, listPrefix)
	if err != nil {
		return fmt.Errorf("list shards: %w", err)
	}
	for _, name := range names {
		if !strings.HasSuffix(name, ShardSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scan shards: %w", err)
		}
		data, err := s.bucket.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("get shard %s: %w", name, err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		for {
			var l line
			if err := dec.Decode(&l); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("decode shard %s: %w", name, err)
			}
			if err := fn(l); err != nil {
				return err
			}
		}
	}
	return nil
}
