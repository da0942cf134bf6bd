package mirror

import (
	"time"

	"github.com/PentesterFlow/OpenMirror/internal/auth"
	"github.com/PentesterFlow/OpenMirror/internal/logger"
	"github.com/PentesterFlow/OpenMirror/internal/metrics"
	"github.com/PentesterFlow/OpenMirror/internal/progress"
)

// Option is a functional option for configuring the Mirror.
type Option func(*Mirror) error

// WithTarget sets the start URL.
func WithTarget(url string) Option {
	return func(m *Mirror) error {
		m.config.Target = url
		return nil
	}
}

// WithOutputDir sets the mirror root directory.
func WithOutputDir(dir string) Option {
	return func(m *Mirror) error {
		m.config.OutputDir = dir
		return nil
	}
}

// WithWorkers sets the number of concurrent page workers.
func WithWorkers(n int) Option {
	return func(m *Mirror) error {
		if n < 1 {
			n = 1
		}
		m.config.Workers = n
		return nil
	}
}

// WithAssetWorkers sets the number of concurrent asset downloads per page.
func WithAssetWorkers(n int) Option {
	return func(m *Mirror) error {
		if n < 1 {
			n = 1
		}
		m.config.AssetWorkers = n
		return nil
	}
}

// WithMaxDepth sets the maximum link depth; 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(m *Mirror) error {
		if depth < 0 {
			depth = 0
		}
		m.config.MaxDepth = depth
		return nil
	}
}

// WithMaxPages caps the number of pages; 0 means unlimited.
func WithMaxPages(n int) Option {
	return func(m *Mirror) error {
		if n < 0 {
			n = 0
		}
		m.config.MaxPages = n
		return nil
	}
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Mirror) error {
		m.config.Timeout = timeout
		return nil
	}
}

// WithDelay sets the politeness delay between page fetches.
func WithDelay(delay time.Duration) Option {
	return func(m *Mirror) error {
		m.config.Delay = delay
		return nil
	}
}

// WithUserAgent sets the user agent string.
func WithUserAgent(ua string) Option {
	return func(m *Mirror) error {
		m.config.UserAgent = ua
		return nil
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(m *Mirror) error {
		if m.config.Headers == nil {
			m.config.Headers = make(map[string]string)
		}
		for k, v := range headers {
			m.config.Headers[k] = v
		}
		return nil
	}
}

// WithAuth sets the credentials sent with every request.
func WithAuth(creds auth.Credentials) Option {
	return func(m *Mirror) error {
		if _, err := auth.NewProvider(creds); err != nil {
			return err
		}
		m.config.Auth = creds
		return nil
	}
}

// WithIncludePatterns adds page URL patterns to include.
func WithIncludePatterns(patterns ...string) Option {
	return func(m *Mirror) error {
		m.config.Scope.IncludePatterns = append(m.config.Scope.IncludePatterns, patterns...)
		return nil
	}
}

// WithExcludePatterns adds page URL patterns to exclude.
func WithExcludePatterns(patterns ...string) Option {
	return func(m *Mirror) error {
		m.config.Scope.ExcludePatterns = append(m.config.Scope.ExcludePatterns, patterns...)
		return nil
	}
}

// WithAllowedDomains adds hosts treated as part of the site.
func WithAllowedDomains(domains ...string) Option {
	return func(m *Mirror) error {
		m.config.Scope.AllowedDomains = append(m.config.Scope.AllowedDomains, domains...)
		return nil
	}
}

// WithRespectRobots enables robots.txt rules.
func WithRespectRobots(respect bool) Option {
	return func(m *Mirror) error {
		m.config.RespectRobots = respect
		return nil
	}
}

// WithSeedSitemap enables seeding the frontier from sitemap.xml.
func WithSeedSitemap(seed bool) Option {
	return func(m *Mirror) error {
		m.config.SeedSitemap = seed
		return nil
	}
}

// WithCommonFiles replaces the files fetched from the site root first.
func WithCommonFiles(files ...string) Option {
	return func(m *Mirror) error {
		m.config.CommonFiles = append([]string(nil), files...)
		return nil
	}
}

// WithRelink enables or disables the relink pass.
func WithRelink(relink bool) Option {
	return func(m *Mirror) error {
		m.config.Relink = relink
		return nil
	}
}

// WithStateFile sets the snapshot store path.
func WithStateFile(path string) Option {
	return func(m *Mirror) error {
		m.config.StateFile = path
		return nil
	}
}

// WithMaxRetries sets the retry count for transient fetch failures.
func WithMaxRetries(n int) Option {
	return func(m *Mirror) error {
		if n < 0 {
			n = 0
		}
		m.config.MaxRetries = n
		return nil
	}
}

// WithVerbose enables/disables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(m *Mirror) error {
		m.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables/disables debug logging.
func WithDebug(debug bool) Option {
	return func(m *Mirror) error {
		m.config.Debug = debug
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Mirror) error {
		m.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Mirror) error {
		m.metrics = c
		return nil
	}
}

// WithProgress renders progress on d while the mirror runs.
func WithProgress(d *progress.Display) Option {
	return func(m *Mirror) error {
		m.progress = d
		return nil
	}
}

// WithConfig sets the entire configuration.
func WithConfig(config *Config) Option {
	return func(m *Mirror) error {
		m.config = config
		return nil
	}
}
