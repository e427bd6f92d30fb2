// ABOUTME: Stream interface and payload resolver
// ABOUTME: Dispatches payloads to decoders by scheme and file extension
package decode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/charmbracelet/log"
)

var (
	// ErrNotFound is returned when a local payload does not exist
	ErrNotFound = errors.New("audio payload not found")

	// ErrUnsupported is returned when no decoder can handle a payload
	ErrUnsupported = errors.New("unsupported audio payload")
)

// Stream produces decoded PCM audio
type Stream interface {
	// Read fills samples with interleaved float32 PCM and returns the
	// number of samples written. io.EOF marks the end of the stream.
	Read(samples []float32) (int, error)

	// Format returns the native format of the stream
	Format() audio.Format

	// Close releases the stream and its underlying reader
	Close() error
}

// Opener opens payloads as streams
type Opener interface {
	Open(ctx context.Context, payload string) (Stream, error)
}

// Config configures a Resolver
type Config struct {
	// LoopFiles restarts local files when they reach EOF
	LoopFiles bool

	// FFmpegPath is the ffmpeg binary used for formats without a native decoder
	FFmpegPath string

	// HTTPTimeout bounds connecting and receiving response headers
	HTTPTimeout time.Duration

	// CacheTTL is how long decoded clips stay cached
	CacheTTL time.Duration

	// CacheMaxBytes is the largest decoded clip, in float32 sample bytes,
	// kept in the clip cache. Zero disables the cache.
	CacheMaxBytes int64

	Logger *log.Logger
}

// Resolver is the default Opener
type Resolver struct {
	config Config
	client *http.Client
	clips  *ClipCache
	logger *log.Logger
}

// NewResolver creates a resolver, filling defaults for zero fields
func NewResolver(config Config) *Resolver {
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 10 * time.Second
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Resolver{
		config: config,
		client: &http.Client{
			// No overall timeout: the body is a live stream
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: config.HTTPTimeout,
				TLSHandshakeTimeout:   config.HTTPTimeout,
			},
		},
		logger: logger.WithPrefix("decode"),
	}
	if config.CacheMaxBytes > 0 {
		r.clips = NewClipCache(config.CacheTTL, config.CacheMaxBytes)
	}
	return r
}

// Clips returns the clip cache, or nil when caching is disabled
func (r *Resolver) Clips() *ClipCache {
	return r.clips
}

// Open resolves a payload into a stream
func (r *Resolver) Open(ctx context.Context, payload string) (Stream, error) {
	payload = strings.TrimSpace(payload)

	switch {
	case payload == "" || strings.HasPrefix(payload, "tone:"):
		return nonNil(NewTone(payload))

	case strings.HasPrefix(payload, "http://") || strings.HasPrefix(payload, "https://"):
		// HLS playlists are only understood by ffmpeg
		if strings.Contains(payload, ".m3u8") {
			r.logger.Info("Streaming via ffmpeg", "url", payload)
			return nonNil(NewFFmpeg(r.config.FFmpegPath, payload))
		}
		r.logger.Info("Streaming from HTTP", "url", payload)
		return r.openHTTP(ctx, payload)
	}

	info, err := os.Stat(payload)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, payload)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", payload, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupported, payload)
	}

	if r.clips != nil && decodedSizeEstimate(payload, info.Size()) <= r.config.CacheMaxBytes {
		clip, err := r.clips.Load(payload, info.ModTime(), func() (Stream, error) {
			return r.openFile(payload)
		})
		switch {
		case err == nil:
			return clip.Stream(r.config.LoopFiles), nil
		case errors.Is(err, ErrClipTooLarge):
			r.logger.Debug("Clip too large to cache, streaming", "path", payload)
		default:
			return nil, err
		}
	}

	if r.config.LoopFiles {
		return nonNil(NewLoop(func() (Stream, error) { return r.openFile(payload) }))
	}
	return r.openFile(payload)
}

// openFile picks a decoder from the file extension
func (r *Resolver) openFile(path string) (Stream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return nonNil(OpenMP3File(path))
	case ".flac":
		return nonNil(OpenFLACFile(path))
	case ".wav":
		return nonNil(OpenWAVFile(path))
	case ".ogg", ".oga":
		return nonNil(OpenVorbisFile(path))
	default:
		return nonNil(NewFFmpeg(r.config.FFmpegPath, path))
	}
}

// decodedSizeEstimate is a lower bound on the float32 size of a file once
// decoded, so files that cannot fit the clip cache are never fully decoded
func decodedSizeEstimate(path string, fileSize int64) int64 {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		// 16-bit PCM to float32
		return fileSize * 2
	case ".flac":
		// lossless compression rarely beats 2:1
		return fileSize * 4
	default:
		// lossy at up to 256 kbit/s against 44.1 kHz stereo float32
		return fileSize * 11
	}
}

// nonNil keeps a typed nil stream from escaping as a non-nil interface
func nonNil[S Stream](s S, err error) (Stream, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
