// ABOUTME: In-memory cache of fully decoded short clips
// ABOUTME: Lets repeated creates of the same sound skip decoding
package decode

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/patrickmn/go-cache"
)

// Clip is a fully decoded payload shared by all streams playing it
type Clip struct {
	Samples []float32
	Format  audio.Format
}

// Stream returns an independent reader over the clip
func (c *Clip) Stream(loop bool) Stream {
	return &clipStream{clip: c, loop: loop}
}

// ErrClipTooLarge is returned by Load when a clip decodes past the size limit
var ErrClipTooLarge = errors.New("clip too large to cache")

// ClipCache caches decoded clips keyed by path and modification time
type ClipCache struct {
	cache    *cache.Cache
	oversize *cache.Cache
	maxBytes int64
}

// NewClipCache creates a cache whose entries expire after ttl. Clips whose
// decoded float32 samples exceed maxBytes are not kept.
func NewClipCache(ttl time.Duration, maxBytes int64) *ClipCache {
	return &ClipCache{
		cache:    cache.New(ttl, 2*ttl),
		oversize: cache.New(ttl, 2*ttl),
		maxBytes: maxBytes,
	}
}

// Load returns the cached clip for path, decoding it with open on a miss.
// Decoding stops with ErrClipTooLarge once the clip passes the size limit,
// and the path is remembered so later loads fail fast.
func (c *ClipCache) Load(path string, modTime time.Time, open func() (Stream, error)) (*Clip, error) {
	key := fmt.Sprintf("%s@%d", path, modTime.UnixNano())
	if v, ok := c.cache.Get(key); ok {
		return v.(*Clip), nil
	}
	if _, ok := c.oversize.Get(key); ok {
		return nil, ErrClipTooLarge
	}

	stream, err := open()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	clip, err := readAll(stream, int(c.maxBytes/4))
	if errors.Is(err, ErrClipTooLarge) {
		c.oversize.SetDefault(key, struct{}{})
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode clip %s: %w", path, err)
	}
	c.cache.SetDefault(key, clip)
	return clip, nil
}

// Len returns the number of cached clips
func (c *ClipCache) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every cached clip
func (c *ClipCache) Flush() {
	c.cache.Flush()
	c.oversize.Flush()
}

// ReadAll decodes a stream to the end
func ReadAll(s Stream) (*Clip, error) {
	return readAll(s, 0)
}

// readAll decodes a stream to the end, failing with ErrClipTooLarge past
// maxSamples. Zero means no limit.
func readAll(s Stream, maxSamples int) (*Clip, error) {
	format := s.Format()
	chunk := make([]float32, 4096)
	var samples []float32
	for {
		n, err := s.Read(chunk)
		samples = append(samples, chunk[:n]...)
		if maxSamples > 0 && len(samples) > maxSamples {
			return nil, ErrClipTooLarge
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return &Clip{Samples: samples, Format: format}, nil
}

// clipStream reads a shared clip, optionally wrapping around
type clipStream struct {
	clip *Clip
	pos  int
	loop bool
}

func (s *clipStream) Read(samples []float32) (int, error) {
	if len(s.clip.Samples) == 0 {
		return 0, io.EOF
	}

	total := 0
	for total < len(samples) {
		if s.pos >= len(s.clip.Samples) {
			if !s.loop {
				return total, io.EOF
			}
			s.pos = 0
		}
		n := copy(samples[total:], s.clip.Samples[s.pos:])
		s.pos += n
		total += n
	}
	return total, nil
}

func (s *clipStream) Format() audio.Format { return s.clip.Format }

func (s *clipStream) Close() error { return nil }
