package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acswi/programchat/internal/profile"
	"github.com/acswi/programchat/server"
	"github.com/acswi/programchat/store"
	"github.com/acswi/programchat/store/db"
)

const version = "0.2.0"

var rootCmd = &cobra.Command{
	Use:   "programchat",
	Short: "Multi-tenant program chatbot server",
	Run: func(_ *cobra.Command, _ []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		prof, err := loadProfile()
		if err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		driver, err := db.NewDBDriver(prof)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}

		st := store.New(driver, prof)
		if err := st.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}

		srv, err := server.NewServer(ctx, prof, st)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			os.Exit(1)
		}

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-signals
			cancel()
			srv.Shutdown(context.Background())
		}()

		if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	},
}

func loadProfile() (*profile.Profile, error) {
	prof := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version,

		Secret:     viper.GetString("secret"),
		AdminEmail: viper.GetString("admin_email"),

		AIBaseURL:        viper.GetString("ai_base_url"),
		AIAPIKey:         viper.GetString("ai_api_key"),
		AIChatModel:      viper.GetString("ai_chat_model"),
		AIEmbeddingModel: viper.GetString("ai_embedding_model"),

		SmartsheetToken:           viper.GetString("smartsheet_token"),
		SmartsheetSheetID:         viper.GetString("smartsheet_sheet_id"),
		SmartsheetTimestampColumn: viper.GetInt64("smartsheet_timestamp_column"),
		SmartsheetQuestionColumn:  viper.GetInt64("smartsheet_question_column"),
		SmartsheetResponseColumn:  viper.GetInt64("smartsheet_response_column"),

		TextExtractEnabled: viper.GetBool("textextract_enabled"),
		TikaServerURL:      viper.GetString("textextract_tika_url"),
	}
	if prof.Secret == "" {
		return nil, fmt.Errorf("secret is required (CHATBOT_SECRET)")
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	return prof, nil
}

func init() {
	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server: "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the server")
	rootCmd.PersistentFlags().Int("port", 8081, "binding port for the server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver: "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetDefault("ai_base_url", "https://api.openai.com/v1")
	viper.SetDefault("ai_chat_model", "gpt-4o-mini")
	viper.SetDefault("ai_embedding_model", "text-embedding-3-small")
	viper.SetDefault("textextract_tika_url", "http://localhost:9998")

	viper.SetEnvPrefix("chatbot")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", "error", err)
		os.Exit(1)
	}
}
