package fetch

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodeBody decodes by Content-Encoding only. Sniffing magic bytes would
// misfire on image payloads. The decoded output is held to limit.
func decodeBody(body []byte, contentEncoding string, limit int64) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}

	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "br":
		return readLimited(brotli.NewReader(bytes.NewReader(body)), limit)
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return readLimited(reader, limit)
	default:
		return body, nil
	}
}

// readLimited reads at most limit bytes and fails with ErrBodyTooLarge
// when more are available.
func readLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}
