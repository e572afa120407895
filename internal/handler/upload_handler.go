package handler

import (
	"context"
	"log"
	"mime/multipart"

	"roadassist/pkg/cloudinary"
)

// ImageStore uploads form images to the image host under one folder.
type ImageStore struct {
	cloud  cloudinary.Client
	folder string
}

func NewImageStore(cloud cloudinary.Client, folder string) *ImageStore {
	if cloud == nil {
		cloud = cloudinary.Disabled{}
	}
	if folder == "" {
		folder = "roadassist"
	}
	return &ImageStore{cloud: cloud, folder: folder}
}

func (s *ImageStore) Upload(ctx context.Context, fh *multipart.FileHeader, sub string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.cloud.UploadImage(ctx, f, s.folder+"/"+sub)
}

// Discard deletes a replaced image; failures are only logged.
func (s *ImageStore) Discard(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.cloud.DeleteByURL(ctx, url); err != nil {
		log.Printf("[upload] delete %s: %v", url, err)
	}
}
