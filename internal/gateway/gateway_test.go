package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/config"
)

func testController(t *testing.T) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.GatewayConfig{
		SitesEnabledDir: dir,
		ReloadCommand:   "true",
		CertbotCommand:  "true",
		SkipCertIssue:   true,
	}
	return New(cfg, nil), dir
}

func TestRegisterServiceWritesConfigFile(t *testing.T) {
	c, dir := testController(t)

	err := c.RegisterService(context.Background(), "proj", "svc-1", "app.example.com", true)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "443-app.example.com.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "app.example.com")
	assert.Contains(t, string(content), "auth_request")
}

func TestRegisterServiceRejectsDuplicateDomain(t *testing.T) {
	c, _ := testController(t)

	require.NoError(t, c.RegisterService(context.Background(), "proj", "svc-1", "app.example.com", false))
	err := c.RegisterService(context.Background(), "proj", "svc-2", "app.example.com", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeGateway, apperrors.As(err).Code)
}

func TestRegisterEntrypointWritesConfigFile(t *testing.T) {
	c, dir := testController(t)

	err := c.RegisterEntrypoint(context.Background(), "gw.example.com", "http://127.0.0.1:9000")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "443-gw.example.com.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "http://127.0.0.1:9000")
}

func TestUnregisterDomainRemovesConfigFile(t *testing.T) {
	c, dir := testController(t)

	require.NoError(t, c.RegisterService(context.Background(), "proj", "svc-1", "app.example.com", false))
	require.NoError(t, c.UnregisterDomain(context.Background(), "app.example.com"))

	_, err := os.Stat(filepath.Join(dir, "443-app.example.com.conf"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnregisterDomainRejectsUnknownDomain(t *testing.T) {
	c, _ := testController(t)
	err := c.UnregisterDomain(context.Background(), "never-registered.example.com")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeGateway, apperrors.As(err).Code)
}

func TestAddUpstreamAppendsServerEntry(t *testing.T) {
	c, dir := testController(t)

	require.NoError(t, c.RegisterService(context.Background(), "proj", "svc-1", "app.example.com", false))
	require.NoError(t, c.AddUpstream(context.Background(), "app.example.com", "replica-0", "10.0.0.5:8000"))

	content, err := os.ReadFile(filepath.Join(dir, "443-app.example.com.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "10.0.0.5:8000")
}

func TestRemoveUpstreamRequiresExistingReplica(t *testing.T) {
	c, _ := testController(t)

	require.NoError(t, c.RegisterService(context.Background(), "proj", "svc-1", "app.example.com", false))
	err := c.RemoveUpstream(context.Background(), "app.example.com", "missing-replica")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeGateway, apperrors.As(err).Code)
}

func TestAddUpstreamThenRemoveUpstreamClearsEntry(t *testing.T) {
	c, dir := testController(t)

	require.NoError(t, c.RegisterService(context.Background(), "proj", "svc-1", "app.example.com", false))
	require.NoError(t, c.AddUpstream(context.Background(), "app.example.com", "replica-0", "10.0.0.5:8000"))
	require.NoError(t, c.RemoveUpstream(context.Background(), "app.example.com", "replica-0"))

	content, err := os.ReadFile(filepath.Join(dir, "443-app.example.com.conf"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "10.0.0.5:8000")
}

func TestReloadFailureRollsBackConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GatewayConfig{
		SitesEnabledDir: dir,
		ReloadCommand:   "false", // always exits nonzero
		CertbotCommand:  "true",
		SkipCertIssue:   true,
	}
	c := New(cfg, nil)

	err := c.RegisterService(context.Background(), "proj", "svc-1", "app.example.com", false)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "443-app.example.com.conf"))
	assert.True(t, os.IsNotExist(statErr))
}
