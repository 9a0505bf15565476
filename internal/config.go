package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Source modes.
const (
	SourceModeGitHub = "github"
	SourceModeLocal  = "local"
)

var (
	courseNameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
	httpURLRe    = regexp.MustCompile(`^https?://`)
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Source  SourceConfig      `yaml:"source"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Courses []models.Course   `yaml:"courses"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return validateCourses(c.Courses)
}

// Course returns the configured course with the given name.
func (c *Config) Course(name string) (models.Course, bool) {
	for _, course := range c.Courses {
		if course.Name == name {
			return course, true
		}
	}
	return models.Course{}, false
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects where topic files are read from.
//
// Mode controls the source:
//   - "github" (default): the GitHub contents API.
//   - "local": a checkout on disk, e.g. one produced by the mirror command.
//
// ContentRoot and AppInfoPath locate the course directories and the gradle
// file inside the repository and apply to both modes.
type SourceConfig struct {
	Mode        string       `yaml:"mode"`
	ContentRoot string       `yaml:"content_root"`
	AppInfoPath string       `yaml:"app_info_path"`
	GitHub      GitHubConfig `yaml:"github"`
	Local       LocalConfig  `yaml:"local"`
}

// Layout returns the repository layout shared by both source modes.
func (c *SourceConfig) Layout() storage.Layout {
	return storage.Layout{ContentRoot: c.ContentRoot, AppInfoPath: c.AppInfoPath}
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = SourceModeGitHub
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(SourceModeGitHub, SourceModeLocal)),
		validation.Field(&c.AppInfoPath, validation.Required),
	); err != nil {
		return err
	}
	if c.Mode == SourceModeLocal {
		return c.Local.Validate()
	}
	return c.GitHub.Validate()
}

// GitHubConfig holds the GitHub contents API settings.
type GitHubConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Owner             string  `yaml:"owner"`
	Repo              string  `yaml:"repo"`
	Ref               string  `yaml:"ref"`
	Token             string  `yaml:"token"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ContentsURL returns the contents endpoint of the configured repository.
func (c *GitHubConfig) ContentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents", strings.TrimRight(c.BaseURL, "/"), c.Owner, c.Repo)
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.Match(httpURLRe)),
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
	)
}

// LocalConfig holds the path of a local checkout.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the local source configuration.
func (c *LocalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

func validateCourses(courses []models.Course) error {
	if err := validation.Validate(courses, validation.Required); err != nil {
		return fmt.Errorf("courses: %w", err)
	}
	seen := make(map[string]bool, len(courses))
	for i := range courses {
		c := &courses[i]
		if err := validation.ValidateStruct(c,
			validation.Field(&c.Name, validation.Required, validation.Match(courseNameRe)),
			validation.Field(&c.Dir, validation.Required),
		); err != nil {
			return fmt.Errorf("courses[%d]: %w", i, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("courses[%d]: duplicate course name %q", i, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Mode:        SourceModeGitHub,
			ContentRoot: "app/src/main/java/ir/hrka/kotlin",
			AppInfoPath: "app/build.gradle.kts",
			GitHub: GitHubConfig{
				BaseURL:           "https://api.github.com",
				RequestsPerSecond: 5,
			},
			Local: LocalConfig{
				Path: "./checkout",
			},
		},
		SQLite: SQLiteConfig{
			Path: "./cheatsheet.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Courses: []models.Course{
			{Name: "kotlin", Dir: "courses/kotlin", Title: "Kotlin"},
			{Name: "coroutine", Dir: "courses/coroutine", Title: "Coroutines"},
		},
	}
}
