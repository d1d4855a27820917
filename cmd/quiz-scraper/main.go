package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
)

const version = "0.4.0"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	exitCode := 0
	root := newRootCmd(stdin, stdout, stderr, &exitCode)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return exitCode
}

type globalFlags struct {
	configFile string
	logLevel   string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "quiz-scraper",
		Short: "Harvest multiple-choice quiz pages into a printable PDF",
		Long: `quiz-scraper walks a subject index, a chapter of it, or a single quiz page,
captures every question with its options and explained answer, and renders
the collection as one A4 PDF. Interrupted runs resume from the progress file.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&g.configFile, "config", "config.yaml", "Path to YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	root.AddCommand(
		newScrapeCmd(g, stdin, stderr, exitCode),
		&cobra.Command{
			Use:   "status",
			Short: "Show saved progress for the configured target",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				*exitCode = doStatus(g.configFile, stdout, stderr)
			},
		},
		newCleanCmd(g, stdout, stderr, exitCode),
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the configuration file",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				*exitCode = doValidate(g.configFile, stdout, stderr)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version info",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(stdout, "quiz-scraper %s\n", version)
			},
		},
	)
	return root
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadValidConfig loads the config file and applies defaults. Warnings are
// written to warnOut.
func loadValidConfig(path string, warnOut io.Writer) (*config.AppConfig, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(warnOut, "WARN: %s\n", w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: target '%s' (%s)\n", appCfg.Target.Title, appCfg.Target.SeedURL)
	fmt.Fprintf(stdout, "    PDF: %s\n", appCfg.PDFOutputPath())
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Target: Title:'%s', Seed:%s, Chapters:%d-%d",
		appCfg.Target.Title, appCfg.Target.SeedURL, appCfg.Target.StartChapter, appCfg.Target.EndChapter)
	log.Infof("Browser: Headless:%t, NavigateTimeout:%v, ReconnectAttempts:%d, ScrollSettle:%v, ExpandSettle:%v",
		appCfg.Browser.Headless, appCfg.Browser.NavigateTimeout, appCfg.Browser.ReconnectAttempts,
		appCfg.Browser.ScrollSettle, appCfg.Browser.ExpandSettle)
	log.Infof("Retries: Max:%d, InitialDelay:%v, MaxDelay:%v, Multiplier:%.1f",
		appCfg.Retry.MaxAttempts, appCfg.Retry.InitialDelay, appCfg.Retry.MaxDelay, appCfg.Retry.Multiplier)
	log.Infof("Images: Timeout:%v, DiagramThreshold:%d, Workers:%d, Cache:%t, MaxRetries:%d",
		appCfg.Images.Timeout, appCfg.Images.DiagramThreshold, appCfg.Images.Workers,
		appCfg.Images.CacheEnabled(), appCfg.Images.MaxRetries)
	log.Infof("Output: PDF:%s, Margin:%.0fmm, Markdown:%t, Report:%t, Verify:%t, StateDir:%s",
		appCfg.PDFOutputPath(), appCfg.Output.MarginMM, appCfg.Output.Markdown,
		appCfg.Output.ReportEnabled(), appCfg.Output.VerifyEnabled(), appCfg.StateDir)
	log.Infof("Politeness: TopicDelay:%v, RespectRobots:%t", appCfg.TopicDelay, appCfg.RespectRobots)
}
