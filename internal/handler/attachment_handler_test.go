package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/activity-credit-api/internal/dto"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestAttachmentUploadAndDownload(t *testing.T) {
	a := setupApp(t, nil)
	owner := tokenFor(t, 1, "student")
	teacher := tokenFor(t, 10, "teacher")
	activity := a.createActivity(t, owner)
	base := fmt.Sprintf("/api/v1/activities/%d/attachments", activity.ID)

	resp, env := a.upload(t, base, owner, "Certificate.png", pngHeader)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Message)
	var attachment dto.AttachmentResponse
	decodeData(t, env, &attachment)
	require.Equal(t, "certificate.png", attachment.FileName)
	require.Equal(t, "https://files.test/certificate.png", attachment.URL)

	resp, env = a.do(t, http.MethodGet, base, teacher, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed []dto.AttachmentResponse
	decodeData(t, env, &listed)
	require.Len(t, listed, 1)

	resp, _ = a.do(t, http.MethodGet, fmt.Sprintf("%s/%d/download", base, attachment.ID), owner, nil)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, attachment.URL, resp.Header.Get(fiber.HeaderLocation))

	stranger := tokenFor(t, 99, "student")
	resp, _ = a.do(t, http.MethodGet, fmt.Sprintf("%s/%d/download", base, attachment.ID), stranger, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, attachment.ID), owner, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAttachmentUploadRejections(t *testing.T) {
	a := setupApp(t, nil)
	owner := tokenFor(t, 1, "student")
	activity := a.createActivity(t, owner)
	base := fmt.Sprintf("/api/v1/activities/%d/attachments", activity.ID)

	resp, env := a.do(t, http.MethodPost, base, owner, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "file", env.Details["field"])

	resp, env = a.upload(t, base, owner, "notes.gif", []byte("GIF89a"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "file", env.Details["field"])

	large := make([]byte, 2<<20)
	copy(large, pngHeader)
	resp, _ = a.upload(t, base, owner, "large.png", large)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAttachmentStorageFailure(t *testing.T) {
	a := setupApp(t, stubStorage{err: errStorageDown})
	owner := tokenFor(t, 1, "student")
	activity := a.createActivity(t, owner)

	resp, env := a.upload(t, fmt.Sprintf("/api/v1/activities/%d/attachments", activity.ID), owner, "proof.png", pngHeader)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "upload failed", env.Message)
	require.Equal(t, fiber.StatusInternalServerError, env.Code)
}
