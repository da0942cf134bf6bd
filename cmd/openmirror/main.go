package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/OpenMirror/internal/auth"
	"github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/output"
	"github.com/PentesterFlow/OpenMirror/internal/progress"
	"github.com/PentesterFlow/OpenMirror/internal/scope"
	"github.com/PentesterFlow/OpenMirror/internal/shutdown"
	"github.com/PentesterFlow/OpenMirror/internal/state"
	"github.com/PentesterFlow/OpenMirror/pkg/mirror"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	envFile    string
	verbose    bool
	debug      bool

	// Mirror flags
	workers         int
	assetWorkers    int
	maxDepth        int
	maxPages        int
	timeout         int
	delay           time.Duration
	maxRetries      int
	userAgent       string
	headers         []string
	stateFile       string
	includePatterns []string
	excludePatterns []string
	allowedDomains  []string
	commonFiles     []string
	respectRobots   bool
	seedSitemap     bool
	noRelink        bool
	skipTLSVerify   bool
	assumeYes       bool

	// Auth flags
	authType     string
	username     string
	password     string
	token        string
	cookies      string
	apiKeyHeader string
	apiKey       string

	// Display flags
	format       string
	showProgress bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "openmirror",
		Short: "OpenMirror - Offline Website Mirror",
		Long: `OpenMirror - Downloads a website into a local directory for offline browsing.

Pages, stylesheets, scripts, images and fonts of the site are saved under paths
derived from their URLs, and every reference between them is rewritten to a
relative local path.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	mirrorCmd := &cobra.Command{
		Use:   "mirror [url] [output-dir]",
		Short: "Mirror a website",
		Long:  "Mirror a website into output-dir. Missing arguments are prompted for.",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runMirror,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show mirror status",
		Long:  "Show the status of a mirror run recorded in a state file.",
		RunE:  runStatus,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file with OPENMIRROR_* overrides (default: ./.env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Mirror flags
	mirrorCmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of concurrent page workers")
	mirrorCmd.Flags().IntVar(&assetWorkers, "asset-workers", 4, "Concurrent asset downloads per page")
	mirrorCmd.Flags().IntVarP(&maxDepth, "max-depth", "d", 0, "Maximum link depth (0 = unlimited)")
	mirrorCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum number of pages (0 = unlimited)")
	mirrorCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Request timeout in seconds")
	mirrorCmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "Delay between page requests")
	mirrorCmd.Flags().IntVar(&maxRetries, "max-retries", 2, "Retries for transient failures")
	mirrorCmd.Flags().StringVar(&userAgent, "user-agent", "", "User agent string")
	mirrorCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header (Name: value)")
	mirrorCmd.Flags().StringVar(&stateFile, "state-file", "", "Write a run snapshot to this file")
	mirrorCmd.Flags().StringArrayVar(&includePatterns, "include", nil, "Page URL patterns to include (regex)")
	mirrorCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "Page URL patterns to exclude (regex)")
	mirrorCmd.Flags().StringArrayVar(&allowedDomains, "allow-domain", nil, "Extra host treated as part of the site")
	mirrorCmd.Flags().StringSliceVar(&commonFiles, "common-files", mirror.DefaultCommonFiles, "Files fetched from the site root first")
	mirrorCmd.Flags().BoolVar(&respectRobots, "respect-robots", false, "Do not follow pages disallowed by robots.txt")
	mirrorCmd.Flags().BoolVar(&seedSitemap, "sitemap", false, "Seed the crawl from sitemap.xml")
	mirrorCmd.Flags().BoolVar(&noRelink, "no-relink", false, "Skip the final anchor relink pass")
	mirrorCmd.Flags().BoolVar(&skipTLSVerify, "insecure", false, "Skip TLS certificate verification")
	mirrorCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	// Auth flags
	mirrorCmd.Flags().StringVar(&authType, "auth-type", "none", "Authentication type (none, basic, bearer, session, apikey)")
	mirrorCmd.Flags().StringVarP(&username, "username", "u", "", "Username for basic authentication")
	mirrorCmd.Flags().StringVarP(&password, "password", "p", "", "Password for basic authentication")
	mirrorCmd.Flags().StringVar(&token, "token", "", "Bearer token")
	mirrorCmd.Flags().StringVar(&cookies, "cookies", "", "Session cookies (name=value; name2=value2)")
	mirrorCmd.Flags().StringVar(&apiKeyHeader, "api-key-header", auth.DefaultAPIKeyHeader, "API key header name")
	mirrorCmd.Flags().StringVar(&apiKey, "api-key", "", "API key value")

	// Display flags
	mirrorCmd.Flags().StringVarP(&format, "format", "f", "text", "Summary format (text, json)")
	mirrorCmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress bar while mirroring")

	// Status flags
	statusCmd.Flags().StringVar(&stateFile, "state-file", "", "State file to read")
	statusCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	statusCmd.MarkFlagRequired("state-file")

	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMirror(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		config.Target = args[0]
	}
	if len(args) > 1 {
		config.OutputDir = args[1]
	}

	in := bufio.NewReader(os.Stdin)
	if err := promptMissing(in, os.Stdout, config, len(args) < 2 && !assumeYes); err != nil {
		return err
	}

	enableProgress := showProgress && !verbose && !debug
	opts := []mirror.Option{mirror.WithConfig(config)}
	if enableProgress {
		opts = append(opts, mirror.WithProgress(progress.New()))
	}

	m, err := mirror.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create mirror: %w", err)
	}

	cfg := shutdown.DefaultConfig()
	cfg.OnSignal = func(sig os.Signal) {
		fmt.Fprintf(os.Stderr, "\nReceived %v, stopping...\n", sig)
	}
	handler := shutdown.New(context.Background(), cfg)
	handler.Listen()
	defer handler.Close()

	if !enableProgress {
		printBanner(config)
	}

	result, err := m.Start(handler.Context())
	if result != nil {
		writer := output.NewWriter(os.Stdout, output.Config{Format: format, Pretty: true})
		if werr := writer.WriteSummary(result.Summary()); werr != nil {
			fmt.Fprintf(os.Stderr, "Failed to write summary: %v\n", werr)
		}
		writer.Flush()
	}

	if err != nil {
		if errors.GetErrorType(err) == errors.Cancelled || handler.Interrupted() {
			return fmt.Errorf("mirror interrupted; partial report written to %s", config.OutputDir)
		}
		return fmt.Errorf("mirror failed: %w", err)
	}
	return nil
}

// buildConfig layers defaults, the config file, the environment and the
// command-line flags, in that order.
func buildConfig(cmd *cobra.Command) (*mirror.Config, error) {
	config := mirror.DefaultConfig()
	if configFile != "" {
		fileConfig, err := mirror.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	if err := mirror.LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		config.Workers = workers
	}
	if flags.Changed("asset-workers") {
		config.AssetWorkers = assetWorkers
	}
	if flags.Changed("max-depth") {
		config.MaxDepth = maxDepth
	}
	if flags.Changed("max-pages") {
		config.MaxPages = maxPages
	}
	if flags.Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("delay") {
		config.Delay = delay
	}
	if flags.Changed("max-retries") {
		config.MaxRetries = maxRetries
	}
	if flags.Changed("user-agent") {
		config.UserAgent = userAgent
	}
	if flags.Changed("state-file") {
		config.StateFile = stateFile
	}
	if flags.Changed("common-files") {
		config.CommonFiles = commonFiles
	}
	if flags.Changed("respect-robots") {
		config.RespectRobots = respectRobots
	}
	if flags.Changed("sitemap") {
		config.SeedSitemap = seedSitemap
	}
	if flags.Changed("no-relink") {
		config.Relink = !noRelink
	}
	if flags.Changed("insecure") {
		config.SkipTLSVerify = skipTLSVerify
	}

	if flags.Changed("auth-type") {
		config.Auth = auth.Credentials{
			Type:         auth.AuthType(authType),
			Username:     username,
			Password:     password,
			Token:        token,
			Cookies:      cookies,
			APIKeyHeader: apiKeyHeader,
			APIKey:       apiKey,
		}
	}

	config.Scope.IncludePatterns = append(config.Scope.IncludePatterns, includePatterns...)
	config.Scope.ExcludePatterns = append(config.Scope.ExcludePatterns, excludePatterns...)
	config.Scope.AllowedDomains = append(config.Scope.AllowedDomains, allowedDomains...)

	parsed, err := parseHeaders(headers)
	if err != nil {
		return nil, err
	}
	if len(parsed) > 0 && config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	for k, v := range parsed {
		config.Headers[k] = v
	}

	config.Verbose = config.Verbose || verbose
	config.Debug = config.Debug || debug
	return config, nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

// promptMissing asks for the target and output folder when they were not
// given, then for confirmation when confirm is set. Declining is an error.
func promptMissing(in *bufio.Reader, out io.Writer, config *mirror.Config, confirm bool) error {
	if strings.TrimSpace(config.Target) == "" {
		answer, err := ask(in, out, "Website URL: ")
		if err != nil {
			return err
		}
		config.Target = answer
	}

	target, err := scope.ValidateStart(config.Target)
	if err != nil {
		return err
	}
	config.Target = target

	if config.OutputDir == "" {
		def := scope.SafeFolderName(target)
		answer, err := ask(in, out, fmt.Sprintf("Output folder [%s]: ", def))
		if err != nil {
			return err
		}
		if answer == "" {
			answer = def
		}
		config.OutputDir = answer
	}

	if !confirm {
		return nil
	}
	answer, err := ask(in, out, fmt.Sprintf("Mirror %s into %s? [Y/n]: ", config.Target, config.OutputDir))
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return nil
	}
	return fmt.Errorf("cancelled by user")
}

func ask(in *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := state.OpenStore(stateFile)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if snap == nil {
		fmt.Printf("State file %s holds no snapshot\n", stateFile)
		return nil
	}

	writer := output.NewWriter(os.Stdout, output.Config{Format: format, Pretty: true})
	defer writer.Flush()
	return writer.WriteSummary(snapshotSummary(snap))
}

func snapshotSummary(snap *state.Snapshot) *output.Summary {
	s := &output.Summary{
		Target:      snap.Target,
		OutputDir:   snap.OutputDir,
		StartedAt:   snap.StartedAt,
		CompletedAt: snap.UpdatedAt,
		Duration:    snap.Stats.Duration,
		Statistics: output.Statistics{
			PagesSaved:   snap.Stats.PagesSaved,
			AssetsSaved:  snap.Stats.AssetsSaved,
			Failures:     snap.Stats.Failures,
			Skipped:      snap.Stats.Skipped,
			BytesWritten: snap.Stats.BytesWritten,
		},
		Interrupted: !snap.Finished,
	}
	for _, e := range snap.Errors {
		s.Errors = append(s.Errors, output.ErrorLine{
			URL:       e.URL,
			Type:      e.Type,
			Operation: e.Operation,
			Message:   e.Message,
		})
	}
	return s
}

func printBanner(config *mirror.Config) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      OpenMirror v1.0                         ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Target:     %s\n", config.Target)
	fmt.Printf("Output:     %s\n", config.OutputDir)
	fmt.Printf("Workers:    %d\n", config.Workers)
	fmt.Printf("Max Depth:  %d\n", config.MaxDepth)
	fmt.Printf("Delay:      %v\n", config.Delay)
	fmt.Println()
}
