package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrUploadFailed = errors.New("media upload failed")

// CloudinaryUploader stores images through Cloudinary's unsigned upload
// endpoint and returns the durable URL. The image payload is the data
// URI string clients submit with a message.
type CloudinaryUploader struct {
	cloudName    string
	uploadPreset string
	httpClient   *http.Client
	log          *zap.Logger
}

func NewCloudinaryUploader(cloudName, uploadPreset string, log *zap.Logger) *CloudinaryUploader {
	return &CloudinaryUploader{
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

func (u *CloudinaryUploader) Upload(ctx context.Context, image string) (string, error) {
	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", u.cloudName)

	form := url.Values{}
	form.Set("file", image)
	form.Set("upload_preset", u.uploadPreset)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		u.log.Warn("cloudinary rejected upload", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var body struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if body.SecureURL == "" {
		return "", fmt.Errorf("%w: no secure_url in response", ErrUploadFailed)
	}

	return body.SecureURL, nil
}
