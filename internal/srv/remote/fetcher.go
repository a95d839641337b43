package remote

import (
	"bytes"
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
	"image"
	"image/png"
)

// ImageFetcher downloads the PNG of one screen. Failures are never returned
// to the caller: they are logged and reported as "no image".
type ImageFetcher struct {
	client *Client
	log    *logrus.Entry
}

func NewImageFetcher(client *Client) *ImageFetcher {
	return &ImageFetcher{
		client: client,
		log:    logrus.WithField("source", "remote"),
	}
}

// Fetch returns the decoded image of (app, screen), or nil.
func (f *ImageFetcher) Fetch(ctx context.Context, app int, screen int) image.Image {
	img, err := f.FetchImage(ctx, app, screen)
	if err != nil {
		f.log.Errorf("could not download recent image: %v", err)
		return nil
	}
	return img
}

// FetchImage is Fetch with the failure reason, wrapping ErrImageFetchFailed.
func (f *ImageFetcher) FetchImage(ctx context.Context, app int, screen int) (image.Image, error) {
	url := f.client.ImageUrl(app, screen)
	body, err := f.client.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetchFailed, err)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrImageFetchFailed, url, err)
	}
	f.log.Debugf("downloaded %s (%dx%d)", url, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}
