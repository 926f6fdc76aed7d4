package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/activity-credit-api/internal/category"
	"github.com/noah-isme/activity-credit-api/internal/config"
	"github.com/noah-isme/activity-credit-api/internal/database"
	"github.com/noah-isme/activity-credit-api/internal/handler"
	"github.com/noah-isme/activity-credit-api/internal/middleware"
	"github.com/noah-isme/activity-credit-api/internal/repository"
	"github.com/noah-isme/activity-credit-api/internal/router"
	"github.com/noah-isme/activity-credit-api/internal/service"
)

const jwtSecret = "handler-test-secret"

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]interface{} `json:"details"`
}

type stubStorage struct {
	err error
}

func (s stubStorage) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://files.test/" + name, nil
}

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func setupApp(t *testing.T, storage service.FileStorage) *testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite("handler_" + name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	if storage == nil {
		storage = stubStorage{}
	}

	logger := zerolog.New(io.Discard)
	validate := service.NewValidator()
	categories := category.DefaultRegistry()

	activityRepo := repository.NewActivityRepository(db)
	auditService := service.NewAuditService(repository.NewAuditLogRepository(db), logger)
	events := service.NewEventPublisher(redisClient, "test", nil, logger)
	confirmations := service.NewConfirmationService(redisClient, "test", 0, logger)

	activityService := service.NewActivityService(activityRepo, categories, confirmations, auditService, events, validate, logger)
	participantService := service.NewParticipantService(repository.NewParticipantRepository(db), auditService, events, validate, logger)
	applicationService := service.NewApplicationService(repository.NewApplicationRepository(db), activityRepo, service.ApplicationPolicy{}, auditService, events, validate, logger)
	attachmentService := service.NewAttachmentService(repository.NewAttachmentRepository(db), activityRepo, storage, auditService, 1, logger)
	exportService := service.NewExportService(activityRepo, repository.NewUserRepository(db), logger)

	cfg := config.Config{AppName: "Activity Credit API", AppEnv: "test"}
	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:    handler.NewActivityHandler(activityService, exportService, logger),
		ParticipantHandler: handler.NewParticipantHandler(participantService, logger),
		AttachmentHandler:  handler.NewAttachmentHandler(attachmentService, logger),
		ApplicationHandler: handler.NewApplicationHandler(applicationService, logger),
		CategoryHandler:    handler.NewCategoryHandler(service.NewCategoryService(categories), logger),
		AuditHandler:       handler.NewAuditHandler(auditService, logger),
		JWTMiddleware:      middleware.JWTProtected(jwtSecret),
	})

	return &testApp{app: app, db: db}
}

func tokenFor(t *testing.T, id uint, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": float64(id), "role": role})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return a.send(t, req)
}

func (a *testApp) upload(t *testing.T, path, token, filename string, content []byte) (*http.Response, envelope) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

var errStorageDown = errors.New("storage down")

func competitionBody() map[string]interface{} {
	return map[string]interface{}{
		"title":    "Robotics league",
		"category": "competition",
		"details": map[string]interface{}{
			"competition_name":  "National Robotics League",
			"competition_level": "national",
			"award_rank":        "first",
		},
	}
}
