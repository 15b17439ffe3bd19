// Package cli implements the shieldai command line interface. Commands run
// against the local container engine directly; no server is required.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ovidijusr/shieldai/internal/ai"
	"github.com/ovidijusr/shieldai/internal/classifier"
	"github.com/ovidijusr/shieldai/internal/config"
	"github.com/ovidijusr/shieldai/internal/dockerx"
	"github.com/ovidijusr/shieldai/internal/fix"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/rules"
	"github.com/ovidijusr/shieldai/internal/services"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "shieldai",
	Short: "ShieldAI - container infrastructure security audit and remediation",
	Long: `ShieldAI audits the local container infrastructure with deterministic
security checks and an optional model-assisted deep analysis, previews the
resulting configuration fixes as diffs, and applies them with backups and
restart verification.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.shieldai/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newFixCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		configDir := home + "/.shieldai"
		_ = os.MkdirAll(configDir, 0700)
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SHIELDAI")
	viper.AutomaticEnv()

	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

// app bundles the wired components a command needs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	service *services.AuditService
	fixer   *fix.Engine
}

// buildApp wires the local engine stack the same way the API server does.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{Level: logLevel, Format: "console"})

	cli, err := dockerx.NewClient()
	if err != nil {
		return nil, err
	}

	collector := dockerx.NewCollector(cli, cfg.Docker.ComposePaths, cfg.Docker.AuditorContainer, log)
	lifecycle := dockerx.NewLifecycle(cli)
	synth := dockerx.NewSynthesizer(cli)
	engine := rules.NewEngine(classifier.New(), log)
	fixer := fix.NewEngine(lifecycle, synth, cfg.Fix.BackupDir, cfg.Fix.RestartWait, log)

	var analyzer services.Analyzer
	if cfg.AI.APIKey != "" {
		a, err := ai.NewAnalyzer(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, log)
		if err != nil {
			return nil, err
		}
		analyzer = a
	}

	return &app{
		cfg:     cfg,
		log:     log,
		service: services.NewAuditService(collector, engine, analyzer, fixer, log),
		fixer:   fixer,
	}, nil
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	if f := viper.GetString("output"); f != "" {
		return f
	}
	return "table"
}
