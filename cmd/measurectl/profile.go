package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/gateway"
	"github.com/straye-as/measure-api/internal/measurement"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const profileFileName = ".measurectl.yaml"

// Profile is the yaml connection profile
type Profile struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Token   string `yaml:"token"`
	UserID  string `yaml:"userId"`
	Role    string `yaml:"role"`
	// Timeout is a Go duration string, e.g. "30s"
	Timeout             string `yaml:"timeout"`
	HideArchivedPeriods bool   `yaml:"hideArchivedPeriods"`
	AllowReReview       bool   `yaml:"allowReReview"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return profileFileName
	}
	return filepath.Join(home, profileFileName)
}

// loadProfile reads and validates a profile. MEASURECTL_TOKEN overrides the token.
func loadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if token := os.Getenv("MEASURECTL_TOKEN"); token != "" {
		p.Token = token
	}

	if p.BaseURL == "" {
		return nil, fmt.Errorf("profile %s: baseUrl is required", path)
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("profile %s: userId is required", path)
	}
	if p.Role == "" {
		p.Role = string(domain.RoleViewer)
	}
	if !domain.IsValidRole(p.Role) {
		return nil, fmt.Errorf("profile %s: unknown role %q", path, p.Role)
	}
	if p.Timeout != "" {
		if _, err := time.ParseDuration(p.Timeout); err != nil {
			return nil, fmt.Errorf("profile %s: invalid timeout %q", path, p.Timeout)
		}
	}
	return &p, nil
}

func (p *Profile) session() measurement.Session {
	return measurement.Session{UserID: p.UserID, Role: domain.UserRoleType(p.Role)}
}

func (p *Profile) options() measurement.Options {
	return measurement.Options{HideArchivedPeriods: p.HideArchivedPeriods, AllowReReview: p.AllowReReview}
}

// env is everything a command needs to talk to the API
type env struct {
	profile *Profile
	client  *gateway.HTTPClient
	ctrl    *measurement.Controller
	log     *zap.Logger
}

// newEnv loads the profile and builds the client and controller. Notifications go to stderr,
// or to the logger when verbose.
func newEnv(cmd *cobra.Command, g *globalFlags) (*env, error) {
	p, err := loadProfile(g.profile)
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	if g.verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}

	timeout, _ := time.ParseDuration(p.Timeout)
	client, err := gateway.NewHTTPClient(gateway.Config{
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		Token:   p.Token,
		Timeout: timeout,
	}, log)
	if err != nil {
		return nil, err
	}

	var notifier measurement.Notifier = measurement.NewWriterNotifier(cmd.ErrOrStderr())
	if g.verbose {
		notifier = measurement.NewLogNotifier(log)
	}

	return &env{
		profile: p,
		client:  client,
		ctrl:    measurement.NewController(client, notifier, p.session(), p.options()),
		log:     log,
	}, nil
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
