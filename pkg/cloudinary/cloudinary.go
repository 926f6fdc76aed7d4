package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by Disabled storage.
var ErrNotConfigured = errors.New("attachment storage is not configured")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// Timeout bounds a single upload; zero means 30s.
	Timeout time.Duration
}

// Configured reports whether all credentials are present.
func (c Config) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Service stores activity attachments in Cloudinary.
type Service struct {
	client  *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
	logger  zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		client:  cld,
		folder:  strings.Trim(cfg.Folder, "/"),
		timeout: timeout,
		logger:  logger.With().Str("component", "attachment_storage").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary and returns a secure URL. Non-image
// evidence (pdf, office files, archives) is stored as a raw asset.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     buildPublicID(name, time.Now()),
		ResourceType: resourceType(name),
		Tags:         []string{"activity-attachment"},
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("cloudinary returned no url for %s", params.PublicID)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("resource_type", params.ResourceType).Msg("attachment stored")

	return result.SecureURL, nil
}

// Disabled is the storage used when no credentials are configured. Uploads
// fail; everything else in the API keeps working.
type Disabled struct{}

// Upload always fails with ErrNotConfigured.
func (Disabled) Upload(context.Context, string, io.Reader) (string, error) {
	return "", ErrNotConfigured
}

func resourceType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return "image"
	default:
		return "raw"
	}
}

func buildPublicID(name string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "attachment"
	}

	id := fmt.Sprintf("%s-%d", base, now.Unix())
	// raw assets keep their extension so downloads open with the right app
	if resourceType(name) == "raw" && ext != "" {
		id += ext
	}
	return id
}
