package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"

	"github.com/dshills/docsplice/internal/generator"
)

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("workers", c.Workers, atLeastOne),
		criterio.Run("generator.max_retries", c.Generator.MaxRetries, atLeastOne),
		criterio.Run("generator.provider", c.Generator.Provider, knownProvider),
		criterio.Run("generator.cache_size", c.Generator.CacheSize, notNegative),
		criterio.Run("generator.burst", c.Generator.Burst, notNegative),
		criterio.Run("generator.timeout", int(c.Generator.Timeout), notNegative),
		criterio.Run("generator.rate_limit", c.Generator.RateLimit, notNegativeFloat),
		criterio.Run("data_dir", c.DataDir, notEmpty),
		c.validateExtensions(),
		c.validatePatterns(),
	)
}

// ValidateDeep adds I/O checks on top of Validate: the git executable, the
// repository directory and the data directory.
func (c *Config) ValidateDeep() error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		criterio.Run("git_path", c.GitPath, gitExecutableExists),
		criterio.Run("repo", c.Repo, isDirectory),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func atLeastOne(n int) error {
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func notNegative(n int) error {
	if n < 0 {
		return fmt.Errorf("cannot be negative, got %d", n)
	}
	return nil
}

func notNegativeFloat(f float64) error {
	if f < 0 {
		return fmt.Errorf("cannot be negative, got %g", f)
	}
	return nil
}

func notEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}

func knownProvider(p string) error {
	switch p {
	case generator.ProviderOllama, generator.ProviderOpenAI, generator.ProviderStatic:
		return nil
	}
	return fmt.Errorf("unknown provider %q", p)
}

// validateExtensions requires every extension to start with a dot
func (c *Config) validateExtensions() error {
	var errs criterio.FieldErrorsBuilder
	for i, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = errs.Append(fmt.Sprintf("extensions[%d]", i), fmt.Errorf("%q must start with a dot", ext))
		}
	}
	return errs.ToError()
}

// validatePatterns checks include and exclude globs
func (c *Config) validatePatterns() error {
	var errs criterio.FieldErrorsBuilder
	for i, p := range c.Include {
		if !doublestar.ValidatePattern(p) {
			errs = errs.Append(fmt.Sprintf("include[%d]", i), fmt.Errorf("invalid glob %q", p))
		}
	}
	for i, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			errs = errs.Append(fmt.Sprintf("exclude[%d]", i), fmt.Errorf("invalid glob %q", p))
		}
	}
	return errs.ToError()
}

// gitExecutableExists validates that the git path is executable.
func gitExecutableExists(path string) error {
	if path == "" {
		return nil
	}
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("executable not found: %s", path)
	}
	return nil
}

// isDirectory validates that a path, when set, is an existing directory.
func isDirectory(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
