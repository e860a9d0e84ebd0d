package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file labelgen looks for in the project directory.
const FileName = "labelgen.yaml"

// DefaultRuntimeImport is the import path of the label runtime package.
const DefaultRuntimeImport = "github.com/abramin/golabel/label"

// Config represents the labelgen configuration.
type Config struct {
	Exclude       ExcludeConfig `yaml:"exclude"`
	Output        OutputConfig  `yaml:"output"`
	RuntimeImport string        `yaml:"runtime_import"`
	Link          []string      `yaml:"link"`
	Check         *bool         `yaml:"check"`
	BuildFlags    []string      `yaml:"build_flags"`
	StoreDir      string        `yaml:"store_dir"`
}

// ExcludeConfig defines patterns to exclude from scanning.
type ExcludeConfig struct {
	Dirs      []string `yaml:"dirs"`
	FilesGlob []string `yaml:"files_glob"`
}

// OutputConfig names the files labelgen writes into each package.
type OutputConfig struct {
	Declarations  string `yaml:"declarations"`
	Registrations string `yaml:"registrations"`
	Link          string `yaml:"link"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	check := true
	return &Config{
		Exclude: ExcludeConfig{
			Dirs:      []string{"vendor", "third_party", "testdata", ".labelgen"},
			FilesGlob: []string{"**/*.pb.go", "**/*_mock.go"},
		},
		Output: OutputConfig{
			Declarations:  "labels_gen.go",
			Registrations: "labels_init_gen.go",
			Link:          "labels_link_gen.go",
		},
		RuntimeImport: DefaultRuntimeImport,
		Check:         &check,
		StoreDir:      ".labelgen",
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for labelgen.yaml in the current directory.
// Values in the config file replace defaults field by field (no deep merging).
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = FileName
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	defaults.Merge(&fileCfg)
	return defaults, nil
}

// LoadFromDir loads configuration from the specified directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if len(other.Exclude.Dirs) > 0 {
		c.Exclude.Dirs = other.Exclude.Dirs
	}
	if len(other.Exclude.FilesGlob) > 0 {
		c.Exclude.FilesGlob = other.Exclude.FilesGlob
	}
	if other.Output.Declarations != "" {
		c.Output.Declarations = other.Output.Declarations
	}
	if other.Output.Registrations != "" {
		c.Output.Registrations = other.Output.Registrations
	}
	if other.Output.Link != "" {
		c.Output.Link = other.Output.Link
	}
	if other.RuntimeImport != "" {
		c.RuntimeImport = other.RuntimeImport
	}
	if len(other.Link) > 0 {
		c.Link = other.Link
	}
	if other.Check != nil {
		c.Check = other.Check
	}
	if len(other.BuildFlags) > 0 {
		c.BuildFlags = other.BuildFlags
	}
	if other.StoreDir != "" {
		c.StoreDir = other.StoreDir
	}
}

// CheckTypes reports whether the go/types pre-check is enabled.
func (c *Config) CheckTypes() bool {
	return c.Check == nil || *c.Check
}

// IsExcludedDir checks if a directory should be excluded from scanning.
func (c *Config) IsExcludedDir(dir string) bool {
	base := filepath.Base(dir)
	for _, excluded := range c.Exclude.Dirs {
		if base == excluded {
			return true
		}
	}
	return false
}

// IsExcludedFile checks if a file matches an exclusion glob.
func (c *Config) IsExcludedFile(file string) bool {
	for _, pattern := range c.Exclude.FilesGlob {
		if matchesGlob(file, pattern) {
			return true
		}
	}
	return false
}

// IsGenerated reports whether file is one of the files labelgen writes.
func (c *Config) IsGenerated(file string) bool {
	switch filepath.Base(file) {
	case c.Output.Declarations, c.Output.Registrations, c.Output.Link:
		return true
	}
	return false
}

// ShouldLink reports whether generated link files go into the package at pkgPath.
// Patterns are import paths; a trailing "/..." matches the package and everything below it.
func (c *Config) ShouldLink(pkgPath string) bool {
	for _, pattern := range c.Link {
		if matchPackagePattern(pattern, pkgPath) {
			return true
		}
	}
	return false
}

func matchPackagePattern(pattern, pkgPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/..."); ok {
		return pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/")
	}
	matched, err := filepath.Match(pattern, pkgPath)
	return err == nil && matched
}

// matchesGlob performs a simplified glob match.
func matchesGlob(path, pattern string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
		if ext, ok := strings.CutPrefix(suffix, "*"); ok {
			return strings.HasSuffix(path, ext)
		}
		return strings.HasSuffix(path, suffix)
	}
	matched, _ := filepath.Match(pattern, filepath.Base(path))
	return matched
}
