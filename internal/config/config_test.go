package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.Equal(t, ReReviewPolicyReject, cfg.Workflow.ReReviewPolicy)
	assert.False(t, cfg.Workflow.AllowArchivedPeriods)
	assert.True(t, cfg.Jobs.Enabled)
	assert.Equal(t, "0 0 2 * * *", cfg.Jobs.PeriodArchiveCron)
	assert.Equal(t, 30, cfg.Jobs.PeriodArchiveGraceDays)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "measure", cfg.Events.SubjectPrefix)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_PORT", "9090")
	t.Setenv("WORKFLOW_REREVIEWPOLICY", "overwrite")
	t.Setenv("WORKFLOW_ALLOWARCHIVEDPERIODS", "true")
	t.Setenv("JWT_SIGNING_SECRET", "s3cret")
	t.Setenv("ADMIN_API_KEY", "k")
	t.Setenv("NATS_URL", "nats://broker:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.True(t, cfg.Workflow.OverwriteOnReReview())
	assert.True(t, cfg.Workflow.AllowArchivedPeriods)
	assert.Equal(t, "s3cret", cfg.AzureAd.SigningSecret)
	assert.Equal(t, "k", cfg.ApiKey.Value)
	assert.Equal(t, "nats://broker:4222", cfg.Events.URL)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{
		"storage": {"mode": "cloud", "maxUploadSizeMB": 50},
		"jobs": {"periodArchiveGraceDays": 7}
	}`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cloud", cfg.Storage.Mode)
	assert.Equal(t, int64(50), cfg.Storage.MaxUploadSizeMB)
	assert.Equal(t, 7, cfg.Jobs.PeriodArchiveGraceDays)
}

func TestLoad_RejectsUnknownReReviewPolicy(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WORKFLOW_REREVIEWPOLICY", "sometimes")

	_, err := Load()
	assert.ErrorContains(t, err, "workflow.reReviewPolicy")
}

func TestValidate(t *testing.T) {
	cfg := &Config{Workflow: WorkflowConfig{ReReviewPolicy: "Overwrite"}}
	assert.NoError(t, cfg.Validate())

	cfg.Jobs.PeriodArchiveGraceDays = -1
	assert.Error(t, cfg.Validate())
}

func TestDurations(t *testing.T) {
	s := ServerConfig{ReadTimeout: 5, WriteTimeout: 10, RequestTimeout: 60}
	assert.Equal(t, 5*time.Second, s.ReadTimeoutDuration())
	assert.Equal(t, 10*time.Second, s.WriteTimeoutDuration())
	assert.Equal(t, time.Minute, s.RequestTimeoutDuration())

	j := JobsConfig{PeriodArchiveTimeout: 120}
	assert.Equal(t, 2*time.Minute, j.PeriodArchiveTimeoutDuration())
}

func TestDatabaseConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "measure", User: "u", Password: "p", SSLMode: "disable"}
	dsn := d.ConnectionString()
	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "dbname=measure")
	assert.Contains(t, dsn, "sslmode=disable")
}
