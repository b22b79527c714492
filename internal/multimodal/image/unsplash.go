package image

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UnsplashSource picks a random landscape photo matching the query.
type UnsplashSource struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
}

func NewUnsplashSource(accessKey, baseURL string) *UnsplashSource {
	if baseURL == "" {
		baseURL = "https://api.unsplash.com"
	}
	return &UnsplashSource{
		accessKey:  accessKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *UnsplashSource) Name() string { return "unsplash" }

type unsplashPhoto struct {
	URLs struct {
		Regular string `json:"regular"`
	} `json:"urls"`
}

func (u *UnsplashSource) Fetch(ctx context.Context, query string) (*Image, error) {
	if u.accessKey == "" {
		return nil, fmt.Errorf("unsplash: UNSPLASH_ACCESS_KEY not configured")
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("orientation", "landscape")
	endpoint := u.baseURL + "/photos/random?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unsplash request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unsplash search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash search: status %d", resp.StatusCode)
	}

	var photo unsplashPhoto
	if err := json.NewDecoder(resp.Body).Decode(&photo); err != nil {
		return nil, fmt.Errorf("unsplash decode: %w", err)
	}
	if photo.URLs.Regular == "" {
		return nil, fmt.Errorf("unsplash: no photo for %q", query)
	}

	img, err := download(ctx, u.httpClient, photo.URLs.Regular, nil)
	if err != nil {
		return nil, fmt.Errorf("unsplash download: %w", err)
	}
	return img, nil
}
