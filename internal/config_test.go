package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/cheatsheet/internal/models"
	pkgconfig "github.com/starford/cheatsheet/pkg/config"
)

// validConfig returns the defaults with the fields that have no default filled in.
func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Source.GitHub.Owner = "acme"
	cfg.Source.GitHub.Repo = "kotlin-cheatsheet"
	return cfg
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_NeedsRepository(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err == nil {
		t.Fatal("github mode without owner/repo should fail")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}
}

func TestSourceConfig_Modes(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Mode = ""
	if err := cfg.Source.Validate(); err != nil || cfg.Source.Mode != SourceModeGitHub {
		t.Errorf("empty mode = %q (%v), want github", cfg.Source.Mode, err)
	}

	cfg.Source.Mode = "ftp"
	if err := cfg.Source.Validate(); err == nil {
		t.Error("unknown mode should fail")
	}

	local := NewDefaultConfig()
	local.Source.Mode = SourceModeLocal
	if err := local.Validate(); err != nil {
		t.Errorf("local mode needs no repository: %v", err)
	}
	local.Source.Local.Path = ""
	if err := local.Validate(); err == nil {
		t.Error("local mode without path should fail")
	}
}

func TestGitHubConfig(t *testing.T) {
	gh := GitHubConfig{BaseURL: "https://api.github.com/", Owner: "acme", Repo: "kt"}
	if got := gh.ContentsURL(); got != "https://api.github.com/repos/acme/kt/contents" {
		t.Errorf("ContentsURL = %q", got)
	}
	gh.BaseURL = "api.github.com"
	if err := gh.Validate(); err == nil {
		t.Error("base url without scheme should fail")
	}
	gh.BaseURL = "https://api.github.com"
	gh.RequestsPerSecond = -1
	if err := gh.Validate(); err == nil {
		t.Error("negative rate should fail")
	}
}

func TestCourses_Validation(t *testing.T) {
	cases := map[string][]models.Course{
		"empty":     nil,
		"no dir":    {{Name: "kotlin"}},
		"bad name":  {{Name: "Kotlin Basics", Dir: "courses/kotlin"}},
		"duplicate": {{Name: "kotlin", Dir: "a"}, {Name: "kotlin", Dir: "b"}},
	}
	for name, courses := range cases {
		cfg := validConfig()
		cfg.Courses = courses
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	cfg := validConfig()
	if c, ok := cfg.Course("coroutine"); !ok || c.Dir != "courses/coroutine" {
		t.Errorf("Course(coroutine) = %+v, %v", c, ok)
	}
	if _, ok := cfg.Course("swift"); ok {
		t.Error("unknown course should not be found")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("CHEATSHEET_TEST_TOKEN", "gh-secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
source:
  mode: github
  github:
    owner: acme
    repo: kotlin-cheatsheet
    token: ${CHEATSHEET_TEST_TOKEN}
courses:
  - name: coroutine
    dir: courses/coroutine
    title: Coroutines
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Source.GitHub.Token != "gh-secret" {
		t.Errorf("token = %q, want expanded env", cfg.Source.GitHub.Token)
	}
	if cfg.Source.GitHub.BaseURL != "https://api.github.com" || cfg.Source.AppInfoPath != "app/build.gradle.kts" {
		t.Errorf("defaults lost: %+v", cfg.Source)
	}
	if len(cfg.Courses) != 1 || cfg.Courses[0].Name != "coroutine" {
		t.Errorf("courses = %+v", cfg.Courses)
	}
}
