package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/crm-exchange/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

// ERPOptions describes the remote document API.
type ERPOptions struct {
	BaseURL        string        `env:"ERP_BASE_URL" envDefault:"http://localhost:8000"`
	APIKey         string        `env:"ERP_API_KEY"`
	APISecret      string        `env:"ERP_API_SECRET"`
	RequestTimeout time.Duration `env:"ERP_REQUEST_TIMEOUT" envDefault:"0s"`
	ImportType     string        `env:"ERP_IMPORT_TYPE" envDefault:"Insert New Records"`

	SubmitImportPath     string `env:"ERP_SUBMIT_IMPORT_PATH" envDefault:"/api/method/crm.api.data_import.upload_import_file"`
	StartImportPath      string `env:"ERP_START_IMPORT_PATH" envDefault:"/api/method/frappe.core.doctype.data_import.data_import.form_start_import"`
	LinkedDocsPath       string `env:"ERP_LINKED_DOCS_PATH" envDefault:"/api/method/crm.api.doc.get_linked_docs_of_document"`
	RemoveLinkedDocsPath string `env:"ERP_REMOVE_LINKED_DOCS_PATH" envDefault:"/api/method/crm.api.doc.remove_linked_doc_reference"`
	ResourcePathPrefix   string `env:"ERP_RESOURCE_PATH_PREFIX" envDefault:"/api/resource"`
}

// Authorization returns the token header value, or "" when no credentials are set.
func (o *ERPOptions) Authorization() string {
	if strings.TrimSpace(o.APIKey) == "" || strings.TrimSpace(o.APISecret) == "" {
		return ""
	}
	return fmt.Sprintf("token %s:%s", strings.TrimSpace(o.APIKey), strings.TrimSpace(o.APISecret))
}

func (o *ERPOptions) Validate() error {
	base := strings.TrimSpace(o.BaseURL)
	if base == "" {
		return fmt.Errorf("ERP_BASE_URL is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return fmt.Errorf("ERP_BASE_URL must be an http(s) URL, got %q", base)
	}
	if o.RequestTimeout < 0 {
		return fmt.Errorf("ERP_REQUEST_TIMEOUT must be non-negative, got %s", o.RequestTimeout)
	}
	return nil
}

type ImportOptions struct {
	SettleDelay        time.Duration `env:"IMPORT_SETTLE_DELAY" envDefault:"1s"`
	AcceptedExtensions []string      `env:"IMPORT_ACCEPTED_EXTENSIONS" envDefault:".csv,.xlsx" envSeparator:","`
	MaxUploadSize      int64         `env:"IMPORT_MAX_UPLOAD_SIZE" envDefault:"33554432"`
}

func (o *ImportOptions) Validate() error {
	if o.SettleDelay < 0 {
		return fmt.Errorf("IMPORT_SETTLE_DELAY must be non-negative, got %s", o.SettleDelay)
	}
	if len(o.AcceptedExtensions) == 0 {
		return fmt.Errorf("IMPORT_ACCEPTED_EXTENSIONS must list at least one extension")
	}
	for i, ext := range o.AcceptedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		o.AcceptedExtensions[i] = ext
	}
	if o.MaxUploadSize <= 0 {
		return fmt.Errorf("IMPORT_MAX_UPLOAD_SIZE must be positive, got %d", o.MaxUploadSize)
	}
	return nil
}

type LokiOptions struct {
	LogPath string `env:"LOG_PATH" envDefault:"./logs/app.log"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"crm-exchange"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

// OpsGuardOptions protects operational endpoints in production.
type OpsGuardOptions struct {
	Enabled       bool   `env:"OPS_GUARD_ENABLED" envDefault:"true"`
	CIDRs         string `env:"OPS_GUARD_CIDRS"`
	Token         string `env:"OPS_GUARD_TOKEN"`
	BasicAuthUser string `env:"OPS_GUARD_BASIC_AUTH_USER"`
	BasicAuthPass string `env:"OPS_GUARD_BASIC_AUTH_PASS"`
	RealIPHeader  string `env:"OPS_GUARD_REAL_IP_HEADER" envDefault:"X-Real-IP"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"100"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type Configuration struct {
	ERP           ERPOptions
	Import        ImportOptions
	Loki          LokiOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	OpsGuard      OpsGuardOptions

	// Tenant/organization identifier attached to every import request.
	CompanyScope string `env:"CRM_COMPANY_SCOPE"`
	// Optional YAML file overriding the embedded entity registry.
	EntitiesPath string `env:"CRM_ENTITIES_PATH"`

	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Domain           string `env:"DOMAIN" envDefault:"localhost"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	CorsOrigins      string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	// Header carrying the request id; generated as a uuidv4 when absent
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`

	logFile io.Closer
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

// CorsOriginList splits CORS_ORIGINS on commas and whitespace.
func (c *Configuration) CorsOriginList() []string {
	return strings.FieldsFunc(c.CorsOrigins, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.Loki.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	if os.Getenv("ORIGIN") == "" {
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}

	return nil
}

func (c *Configuration) validate() error {
	if err := c.ERP.Validate(); err != nil {
		return fmt.Errorf("erp configuration error: %w", err)
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
