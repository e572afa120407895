package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client uploads and removes hosted images.
type Client interface {
	UploadImage(ctx context.Context, file io.Reader, folder string) (url string, err error)
	DeleteByURL(ctx context.Context, url string) error
}

// Optimized image params for fast frontend loading
const (
	ImageWidth = 800
	ThumbWidth = 200
)

const imageEager = "q_auto,f_auto,w_800,c_fill"

var eagerAsyncFalse = false

// BuildOptimizedImageURL returns a Cloudinary URL with transformations for optimized delivery.
func BuildOptimizedImageURL(cloudName, publicID string, width int) string {
	if width <= 0 {
		width = ImageWidth
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_fill/%s",
		cloudName, width, publicID)
}

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

func (c *clientImpl) UploadImage(ctx context.Context, file io.Reader, folder string) (string, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     folder,
		Eager:      imageEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

// DeleteByURL destroys the asset a delivery URL points at. URLs that are not
// Cloudinary delivery URLs are ignored.
func (c *clientImpl) DeleteByURL(ctx context.Context, rawURL string) error {
	publicID, ok := PublicIDFromURL(rawURL)
	if !ok {
		return nil
	}
	res, err := c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", publicID, res.Error.Message)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts the public ID from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/c_fill,w_800/v1712/roadassist/abc.jpg
// which yields "roadassist/abc".
func PublicIDFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasSuffix(u.Host, "cloudinary.com") {
		return "", false
	}
	_, rest, found := strings.Cut(u.Path, "/upload/")
	if !found || rest == "" {
		return "", false
	}
	segs := strings.Split(rest, "/")
	// Transformations come before the version; without a version only
	// comma-separated or key_value segments are treated as transformations.
	start := 0
	for i, s := range segs {
		if versionSegment.MatchString(s) {
			start = i + 1
			break
		}
	}
	if start == 0 {
		for start < len(segs)-1 && isTransformation(segs[start]) {
			start++
		}
	}
	if start >= len(segs) {
		return "", false
	}
	id := strings.Join(segs[start:], "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	return id, id != ""
}

var transformationPart = regexp.MustCompile(`^[a-z]{1,3}_[^/]+$`)

func isTransformation(seg string) bool {
	for _, part := range strings.Split(seg, ",") {
		if !transformationPart.MatchString(part) {
			return false
		}
	}
	return true
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{
		cloudName: cloudName,
		uploader:  up,
	}, nil
}

// Disabled is used when no credentials are configured: uploads fail and
// deletes are no-ops.
type Disabled struct{}

var ErrDisabled = fmt.Errorf("image uploads are not configured")

func (Disabled) UploadImage(context.Context, io.Reader, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) DeleteByURL(context.Context, string) error { return nil }
