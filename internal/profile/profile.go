package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where programchat stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs session tokens
	Secret string
	// AdminEmail marks the account allowed on admin routes. CHATBOT_ADMIN_EMAIL.
	AdminEmail string

	// LLM configuration
	AIBaseURL        string // CHATBOT_AI_BASE_URL (default: https://api.openai.com/v1)
	AIAPIKey         string // CHATBOT_AI_API_KEY
	AIChatModel      string // CHATBOT_AI_CHAT_MODEL (default: gpt-4o-mini)
	AIEmbeddingModel string // CHATBOT_AI_EMBEDDING_MODEL (default: text-embedding-3-small)

	// Audit sink (Smartsheet) configuration. Optional; empty token disables it.
	SmartsheetToken           string // CHATBOT_SMARTSHEET_TOKEN
	SmartsheetSheetID         string // CHATBOT_SMARTSHEET_SHEET_ID
	SmartsheetTimestampColumn int64  // CHATBOT_SMARTSHEET_TIMESTAMP_COLUMN
	SmartsheetQuestionColumn  int64  // CHATBOT_SMARTSHEET_QUESTION_COLUMN
	SmartsheetResponseColumn  int64  // CHATBOT_SMARTSHEET_RESPONSE_COLUMN

	// Text extraction configuration
	TextExtractEnabled bool   // CHATBOT_TEXTEXTRACT_ENABLED (default: false)
	TikaServerURL      string // CHATBOT_TEXTEXTRACT_TIKA_URL (default: http://localhost:9998)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIAPIKey != ""
}

// IsAdminUser reports whether the email belongs to the configured admin.
func (p *Profile) IsAdminUser(email string) bool {
	return p.AdminEmail != "" && strings.EqualFold(strings.TrimSpace(email), p.AdminEmail)
}

// IsAuditEnabled returns true if the Smartsheet side-log is configured.
func (p *Profile) IsAuditEnabled() bool {
	return p.SmartsheetToken != "" && p.SmartsheetSheetID != ""
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("programchat_%s.db", p.Mode))
		}
	}

	return nil
}
