package cloudinary

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicID(t *testing.T) {
	now := time.Unix(1700000000, 0)

	require.Equal(t, "award-certificate-1700000000", buildPublicID("award certificate.png", now))
	require.Equal(t, "report-1700000000.pdf", buildPublicID("report.PDF", now))
	require.Equal(t, "attachment-1700000000", buildPublicID("!!!.jpg", now))
}

func TestResourceType(t *testing.T) {
	require.Equal(t, "image", resourceType("photo.JPEG"))
	require.Equal(t, "raw", resourceType("slides.pptx"))
	require.Equal(t, "raw", resourceType("notes"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
	require.False(t, Config{CloudName: "demo", APIKey: "key"}.Configured())
}

func TestDisabledStorage(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), "a.png", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrNotConfigured)
}
