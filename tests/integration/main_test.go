//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/confhub-io/confhub/internal/app"
	"github.com/confhub-io/confhub/internal/config"
	"github.com/confhub-io/confhub/internal/pkg/httputil"
	"github.com/confhub-io/confhub/internal/testutil"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	testServer    *httptest.Server
	testClient    *testutil.Client
	testValidator *testutil.OpenAPIValidator
	testDB        *pgxpool.Pool

	// Mailpit for E2E email testing
	mailpitContainer *testutil.MailpitContainer
	mailpitClient    *MailpitClient
)

// OpenAPI spec path relative to the tests/integration directory.
const openAPISpecPath = "../../api/openapi/openapi.yaml"

// newTestClient creates a new test client with OpenAPI validation enabled.
// Use this at the beginning of each test that makes API calls.
func newTestClient(t *testing.T) *testutil.Client {
	t.Helper()
	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.SetT(t)
	return client
}

// newTestClientWithoutValidation creates a test client without OpenAPI validation.
// Use this for tests that intentionally test error responses or invalid scenarios.
func newTestClientWithoutValidation() *testutil.Client {
	return testutil.NewClient(testServer.URL)
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	// Start Mailpit container (for E2E email tests)
	mailpitContainer, err = testutil.NewMailpitContainer(ctx)
	if err != nil {
		log.Fatalf("start mailpit: %v", err)
	}
	defer func() {
		if err := mailpitContainer.Terminate(ctx); err != nil {
			log.Printf("terminate mailpit: %v", err)
		}
	}()

	mailpitClient = NewMailpitClient(
		mailpitContainer.APIHost,
		mailpitContainer.APIPort,
	)

	migrator, err := migrate.New(
		"file://../../migrations",
		pgContainer.ConnectionString,
	)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("run migrations: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         "0",
			MetricsPort:  "0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: config.DatabaseConfig{
			URL:             pgContainer.ConnectionString,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 3,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "text",
		},
		JWT: config.JWTConfig{
			SecretKey:            "test-secret-key",
			Issuer:               "confhub-test",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
		},
		Cookie: config.CookieConfig{
			Secure: false, // Not using HTTPS in tests
			Domain: "",
		},
		// Minimum hashing cost; the suites register accounts constantly.
		Bcrypt: config.BcryptConfig{
			Cost: 4,
		},
		Admin: config.AdminConfig{
			Email:    "admin@example.com",
			Password: "admin123",
			Name:     "Site",
			Surname:  "Admin",
		},
		// Login rate limiting off: tests log in far more often than any
		// real browser would.
		RateLimit: config.RateLimitConfig{
			Enabled: false,
		},
		// Notifications stay disabled at app level. The queue and email
		// suites run their own workers; a global worker would steal
		// their queue items.
		Notifications: config.NotificationsConfig{
			Enabled: false,
		},
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("create app: %v", err)
	}

	// Create a direct DB connection for tests that need it
	testDB, err = pgxpool.New(ctx, pgContainer.ConnectionString)
	if err != nil {
		log.Fatalf("create test db pool: %v", err)
	}

	testServer = httptest.NewServer(application.Router())

	// Load OpenAPI validator
	testValidator, err = testutil.LoadOpenAPIValidator(openAPISpecPath)
	if err != nil {
		log.Fatalf("load OpenAPI validator: %v", err)
	}

	// Create client with OpenAPI validation enabled
	testClient = testutil.NewClientWithValidator(testServer.URL, testValidator)

	if err := seedTestUsers(); err != nil {
		log.Fatalf("seed test users: %v", err)
	}

	code := m.Run()

	testServer.Close()
	testDB.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown app: %v", err)
	}

	os.Exit(code)
}

// seedTestUsers registers the well-known accounts the suites log in as
// and grants organizer and speaker their roles. The admin account is
// seeded by the app itself from the Admin config section.
func seedTestUsers() error {
	client := testutil.NewClient(testServer.URL)

	accounts := []struct {
		email    string
		password string
		role     string
	}{
		{"organizer@example.com", "organizer123", "organizer"},
		{"speaker@example.com", "speaker123", "speaker"},
		{"visitor@example.com", "visitor123", "visitor"},
	}

	for _, a := range accounts {
		resp, err := client.POST("/api/v1/auth/register", map[string]string{
			"email":    a.email,
			"password": a.password,
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", a.email, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("register %s: status %d: %s", a.email, resp.StatusCode, body)
		}
	}

	// Promote organizer and speaker via the admin role endpoint.
	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "admin123",
	})
	if err != nil {
		return fmt.Errorf("login admin: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login admin: status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == httputil.CSRFTokenCookie {
			client.CSRFToken = c.Value
			break
		}
	}

	for _, a := range accounts {
		if a.role == "visitor" {
			continue // default role for fresh accounts
		}
		resp, err := client.PUT("/api/v1/users/role", map[string]string{
			"email": a.email,
			"role":  a.role,
		})
		if err != nil {
			return fmt.Errorf("grant %s to %s: %w", a.role, a.email, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("grant %s to %s: status %d: %s", a.role, a.email, resp.StatusCode, body)
		}
	}

	return nil
}
