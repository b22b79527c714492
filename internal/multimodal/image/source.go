package image

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const maxImageBytes = 20 << 20

// Image is fetched or generated image data.
type Image struct {
	Data        []byte
	ContentType string
}

// Extension returns the file extension matching the image's content type.
func (img *Image) Extension() string {
	switch img.ContentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Source turns a visual description into image bytes, either by searching
// a stock library or by generating a new picture.
type Source interface {
	Fetch(ctx context.Context, query string) (*Image, error)
	Name() string
}

// download GETs url and accepts the body only if it is an image.
func download(ctx context.Context, client *http.Client, url string, header http.Header) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return newImage(data, resp.Header.Get("Content-Type"))
}

// newImage trusts a declared image/* type and otherwise sniffs the bytes.
func newImage(data []byte, declared string) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	ct, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(ct, "image/") {
		ct, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image (%s)", ct)
	}
	return &Image{Data: data, ContentType: ct}, nil
}
