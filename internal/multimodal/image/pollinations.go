package image

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PollinationsSource generates images with Pollinations.ai (no key needed).
type PollinationsSource struct {
	baseURL    string
	width      int
	height     int
	httpClient *http.Client
}

func NewPollinationsSource(baseURL string, width, height int) *PollinationsSource {
	if baseURL == "" {
		baseURL = "https://image.pollinations.ai"
	}
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	return &PollinationsSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		width:      width,
		height:     height,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *PollinationsSource) Name() string { return "pollinations" }

// minImageBytes rejects tiny bodies, which are error pages rather than images.
const minImageBytes = 100

func (p *PollinationsSource) Fetch(ctx context.Context, query string) (*Image, error) {
	q := url.Values{}
	q.Set("width", fmt.Sprint(p.width))
	q.Set("height", fmt.Sprint(p.height))
	q.Set("nologo", "true")
	q.Set("seed", fmt.Sprint(seedFor(query)))
	endpoint := fmt.Sprintf("%s/prompt/%s?%s", p.baseURL, url.PathEscape(query), q.Encode())

	img, err := download(ctx, p.httpClient, endpoint, http.Header{"User-Agent": {"videgen/1.0"}})
	if err != nil {
		return nil, fmt.Errorf("pollinations: %w", err)
	}
	if len(img.Data) < minImageBytes {
		return nil, fmt.Errorf("pollinations: response too small (%d bytes)", len(img.Data))
	}
	return img, nil
}

// seedFor keeps the same prompt rendering the same picture.
func seedFor(query string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(query))
	return h.Sum32() % 1_000_000
}
