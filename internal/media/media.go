// Package media resolves image payloads accepted by the send endpoint into a
// mime type plus raw bytes, from a remote URL, a data-URI, or bare base64.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultMime is assumed for bare base64 payloads that carry no mime type.
const DefaultMime = "image/png"

// maxFetchBytes caps how much of a remote image the gateway will buffer.
const maxFetchBytes = 16 << 20

// ErrInvalidImage is returned when a payload is not a URL, a well-formed
// data-URI, or decodable base64.
var ErrInvalidImage = errors.New("invalid image payload")

// Image is an image payload ready to hand to a session driver.
type Image struct {
	Mime string
	Data []byte
}

// Resolve converts the wire representation of an image into an Image.
// Accepted forms, in order of detection:
//   - "http..."  remote URL, fetched with the given client
//   - "data:<mime>;base64,<payload>"
//   - bare base64, assumed DefaultMime
func Resolve(ctx context.Context, client *http.Client, input string) (*Image, error) {
	switch {
	case strings.HasPrefix(input, "http"):
		return fetch(ctx, client, input)
	case strings.HasPrefix(input, "data:"):
		return fromDataURI(input)
	default:
		return fromBase64(input)
	}
}

// fetch downloads a remote image and takes its mime type from Content-Type.
func fetch(ctx context.Context, client *http.Client, url string) (*Image, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" {
		mime = DefaultMime
	}

	return &Image{Mime: mime, Data: data}, nil
}

// fromDataURI parses a data:<mime>;base64,<payload> string.
func fromDataURI(input string) (*Image, error) {
	rest := strings.TrimPrefix(input, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: malformed data-URI", ErrInvalidImage)
	}

	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = DefaultMime
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return &Image{Mime: mime, Data: data}, nil
}

// fromBase64 decodes a bare base64 payload with the default mime type.
func fromBase64(input string) (*Image, error) {
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return &Image{Mime: DefaultMime, Data: data}, nil
}
