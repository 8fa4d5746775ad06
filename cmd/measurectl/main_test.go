package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeProfile(t *testing.T, p Profile) string {
	t.Helper()
	raw, err := yaml.Marshal(p)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func profileFor(t *testing.T, api *testutil.TestAPI, userID string, role domain.UserRoleType) string {
	return writeProfile(t, Profile{
		BaseURL: api.Server.URL,
		Token:   testutil.Token(t, userID, role),
		UserID:  userID,
		Role:    string(role),
	})
}

// run executes the CLI and returns stdout and stderr
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func newAPI(t *testing.T) (*testutil.TestAPI, *testutil.Fixture) {
	api := testutil.NewTestAPI(t, config.WorkflowConfig{ReReviewPolicy: config.ReReviewPolicyReject})
	return api, testutil.CreateFixture(t, api.DB, "engineer-1", "reviewer-1")
}

func TestVersionCmd(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "measurectl dev")
	assert.Contains(t, out, "commit: none")
}

func TestLoadProfile(t *testing.T) {
	_, err := loadProfile(writeProfile(t, Profile{UserID: "u"}))
	assert.ErrorContains(t, err, "baseUrl is required")

	_, err = loadProfile(writeProfile(t, Profile{BaseURL: "http://x", UserID: "u", Role: "boss"}))
	assert.ErrorContains(t, err, `unknown role "boss"`)

	_, err = loadProfile(writeProfile(t, Profile{BaseURL: "http://x", UserID: "u", Timeout: "soon"}))
	assert.ErrorContains(t, err, "invalid timeout")

	t.Setenv("MEASURECTL_TOKEN", "from-env")
	p, err := loadProfile(writeProfile(t, Profile{BaseURL: "http://x", UserID: "u", Token: "from-file"}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.Token)
	assert.Equal(t, string(domain.RoleViewer), p.Role)

	_, err = loadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalogCommands(t *testing.T) {
	api, _ := newAPI(t)
	profile := profileFor(t, api, "engineer-1", domain.RoleEngineer)

	out, _, err := run(t, "projects", "--profile", profile)
	require.NoError(t, err)
	assert.Contains(t, out, "Harbour Bridge")

	out, _, err = run(t, "contracts", "--profile", profile)
	require.NoError(t, err)
	assert.Contains(t, out, "Main works")

	out, _, err = run(t, "periods", "--profile", profile)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-31")

	out, _, err = run(t, "items", "--profile", profile)
	require.NoError(t, err)
	assert.Contains(t, out, "Material items")
	assert.Contains(t, out, "Concrete C35 (m3)")
	assert.Contains(t, out, "Site setup")

	_, _, err = run(t, "contracts", "--profile", profile, "--project", "9999")
	assert.ErrorContains(t, err, "project 9999 not found")
}

func TestDetailsWorkflow(t *testing.T) {
	api, fx := newAPI(t)
	engineer := profileFor(t, api, "engineer-1", domain.RoleEngineer)
	reviewer := profileFor(t, api, "reviewer-1", domain.RoleReviewer)
	item := itoa(fx.Material.ID)

	out, stderr, err := run(t, "details", "add", "--profile", engineer, "--item", item, "--count", "50", "--remark", "north pier")
	require.NoError(t, err)
	assert.Contains(t, out, "6025.00")
	assert.Contains(t, out, "pending")
	assert.Contains(t, stderr, "info: Measurement saved")

	var detail domain.MeasurementDetail
	require.NoError(t, api.DB.First(&detail).Error)
	id := itoa(detail.ID)

	out, _, err = run(t, "details", "update", id, "--profile", engineer, "--count", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "7230.00")

	out, _, err = run(t, "details", "list", "--profile", engineer, "--category", "material")
	require.NoError(t, err)
	assert.Contains(t, out, "north pier")

	_, _, err = run(t, "details", "review", id, "--profile", engineer, "--approve")
	assert.Error(t, err)

	_, _, err = run(t, "details", "review", id, "--profile", reviewer, "--approve", "--reject")
	assert.ErrorContains(t, err, "exactly one of")

	out, _, err = run(t, "details", "review", id, "--profile", reviewer, "--approve", "--comment", "ok")
	require.NoError(t, err)
	assert.Contains(t, out, "approved")

	_, stderr, err = run(t, "details", "delete", id, "--profile", engineer)
	assert.Error(t, err)
	assert.Contains(t, stderr, "error: ")

	out, _, err = run(t, "details", "list", "--profile", engineer, "--status", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "No measurements found.")
}

func TestDetailsAdd_RequiresItemAndCount(t *testing.T) {
	api, _ := newAPI(t)
	engineer := profileFor(t, api, "engineer-1", domain.RoleEngineer)

	_, _, err := run(t, "details", "add", "--profile", engineer, "--count", "5")
	assert.Error(t, err)

	_, _, err = run(t, "details", "add", "--profile", engineer, "--item", "1", "--count", "lots")
	assert.ErrorContains(t, err, "invalid --count")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
