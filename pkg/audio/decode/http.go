// ABOUTME: HTTP stream decoder selection
// ABOUTME: Opens a URL and picks a decoder from content type or extension
package decode

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// openHTTP streams a URL. Formats without a native decoder are handed to ffmpeg.
func (r *Resolver) openHTTP(ctx context.Context, rawURL string) (Stream, error) {
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}
	// Some radio servers interleave metadata unless told otherwise
	req.Header.Set("Icy-MetaData", "0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	switch streamKind(resp.Header.Get("Content-Type"), rawURL) {
	case "mp3":
		s, err := NewMP3(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		return s, nil
	case "ogg":
		s, err := NewVorbis(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		return s, nil
	default:
		resp.Body.Close()
		r.logger.Debug("No native decoder for stream, using ffmpeg", "url", rawURL)
		return nonNil(NewFFmpeg(r.config.FFmpegPath, rawURL))
	}
}

// streamKind classifies a response as "mp3", "ogg" or "" (unknown)
func streamKind(contentType, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "audio/mpeg", "audio/mp3", "audio/mpeg3":
			return "mp3"
		case "audio/ogg", "application/ogg", "audio/vorbis":
			return "ogg"
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".mp3":
			return "mp3"
		case ".ogg", ".oga":
			return "ogg"
		}
	}
	return ""
}
