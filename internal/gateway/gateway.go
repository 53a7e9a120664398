// Package gateway controls the reverse-proxy host that exposes
// long-lived services under a domain: it tracks one SiteConfig per
// registered domain, renders it to a config file, requests a TLS
// certificate, and reloads the proxy, rolling back on failure (spec
// §4.7; grounded on the gateway's nginx.py controller).
package gateway

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/config"
)

// SiteKind discriminates the two config shapes a domain may carry.
type SiteKind string

const (
	SiteKindService    SiteKind = "service"
	SiteKindEntrypoint SiteKind = "entrypoint"
)

// SiteConfig is the discriminated union of a registered domain's
// reverse-proxy configuration.
type SiteConfig struct {
	Kind    SiteKind
	Domain  string
	Project string
	// ServiceID and Auth only apply when Kind == SiteKindService.
	ServiceID string
	Auth      bool
	// Servers maps replica id -> upstream address for a service.
	Servers map[string]string
	// ProxyPath only applies when Kind == SiteKindEntrypoint.
	ProxyPath string
}

const gatewayPort = 8000

var templates = map[SiteKind]*template.Template{
	SiteKindService: template.Must(template.New("service").Parse(serviceTemplate)),
	SiteKindEntrypoint: template.Must(template.New("entrypoint").Parse(entrypointTemplate)),
}

// render produces the proxy config text for conf.
func (c *SiteConfig) render() (string, error) {
	tmpl, ok := templates[c.Kind]
	if !ok {
		return "", fmt.Errorf("gateway: unknown site kind %q", c.Kind)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, struct {
		SiteConfig
		GatewayPort int
	}{SiteConfig: *c, GatewayPort: gatewayPort}); err != nil {
		return "", fmt.Errorf("gateway: render %s: %w", c.Domain, err)
	}
	return buf.String(), nil
}

// Controller tracks registered domains and mutates the reverse-proxy
// host's config directory on their behalf.
type Controller struct {
	cfg config.GatewayConfig
	log *logrus.Entry

	mu      sync.Mutex
	configs map[string]*SiteConfig // keyed by config file name
}

// New builds a Controller from cfg.
func New(cfg config.GatewayConfig, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{cfg: cfg, log: log, configs: make(map[string]*SiteConfig)}
}

func configName(domain string) string {
	return fmt.Sprintf("443-%s.conf", domain)
}

// RegisterService registers domain as a service endpoint, issuing a
// certificate and writing its config before the domain is live.
func (c *Controller) RegisterService(ctx context.Context, project, serviceID, domain string, auth bool) error {
	conf := &SiteConfig{
		Kind:      SiteKindService,
		Domain:    domain,
		Project:   project,
		ServiceID: serviceID,
		Auth:      auth,
		Servers:   make(map[string]string),
	}
	return c.register(ctx, domain, conf)
}

// RegisterEntrypoint registers domain as a static reverse-proxy
// passthrough to prefix.
func (c *Controller) RegisterEntrypoint(ctx context.Context, domain, prefix string) error {
	conf := &SiteConfig{
		Kind:      SiteKindEntrypoint,
		Domain:    domain,
		ProxyPath: prefix,
	}
	return c.register(ctx, domain, conf)
}

func (c *Controller) register(ctx context.Context, domain string, conf *SiteConfig) error {
	name := configName(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.configs[name]; exists {
		return apperrors.Gateway(fmt.Sprintf("domain %s is already registered", domain), nil)
	}

	c.log.WithField("domain", domain).Debug("gateway: registering domain")

	if err := c.runCertbot(ctx, domain); err != nil {
		return err
	}
	rendered, err := conf.render()
	if err != nil {
		return apperrors.Gateway("render site config", err)
	}
	if err := c.writeConf(ctx, rendered, name); err != nil {
		return err
	}
	c.configs[name] = conf

	c.log.WithField("domain", domain).Info("gateway: domain registered")
	return nil
}

// UnregisterDomain removes domain's config and reloads the proxy.
func (c *Controller) UnregisterDomain(ctx context.Context, domain string) error {
	name := configName(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.configs[name]; !exists {
		return apperrors.Gateway("domain is not registered", nil)
	}

	c.log.WithField("domain", domain).Debug("gateway: unregistering domain")

	path := filepath.Join(c.cfg.SitesEnabledDir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.Gateway("remove site config", err)
	}
	if err := c.reload(ctx); err != nil {
		return err
	}
	delete(c.configs, name)

	c.log.WithField("domain", domain).Info("gateway: domain unregistered")
	return nil
}

// AddUpstream adds a replica's upstream address to a registered
// service's config and rewrites it.
func (c *Controller) AddUpstream(ctx context.Context, domain, replicaID, server string) error {
	name := configName(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	conf, exists := c.configs[name]
	if !exists {
		return apperrors.Gateway(fmt.Sprintf("domain %s is not registered", domain), nil)
	}

	updated := cloneConfig(conf)
	updated.Servers[replicaID] = server
	if err := c.writeAndCommit(ctx, name, updated); err != nil {
		return err
	}
	c.configs[name] = updated
	return nil
}

// RemoveUpstream removes a replica's upstream address from a
// registered service's config and rewrites it.
func (c *Controller) RemoveUpstream(ctx context.Context, domain, replicaID string) error {
	name := configName(domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	conf, exists := c.configs[name]
	if !exists {
		return apperrors.Gateway(fmt.Sprintf("domain %s is not registered", domain), nil)
	}
	if _, ok := conf.Servers[replicaID]; !ok {
		return apperrors.Gateway(fmt.Sprintf("upstream %s is not registered", replicaID), nil)
	}

	updated := cloneConfig(conf)
	delete(updated.Servers, replicaID)
	if err := c.writeAndCommit(ctx, name, updated); err != nil {
		return err
	}
	c.configs[name] = updated
	return nil
}

func cloneConfig(conf *SiteConfig) *SiteConfig {
	clone := *conf
	clone.Servers = make(map[string]string, len(conf.Servers))
	for k, v := range conf.Servers {
		clone.Servers[k] = v
	}
	return &clone
}

func (c *Controller) writeAndCommit(ctx context.Context, name string, conf *SiteConfig) error {
	rendered, err := conf.render()
	if err != nil {
		return apperrors.Gateway("render site config", err)
	}
	return c.writeConf(ctx, rendered, name)
}

// writeConf atomically writes conf to the sites-enabled directory and
// reloads the proxy, restoring the previous file contents if the
// reload fails.
func (c *Controller) writeConf(ctx context.Context, conf, name string) error {
	path := filepath.Join(c.cfg.SitesEnabledDir, name)

	oldConf, hadOld := "", false
	if existing, err := os.ReadFile(path); err == nil {
		oldConf, hadOld = string(existing), true
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(conf), 0644); err != nil {
		return apperrors.Gateway("write site config", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Gateway("write site config", err)
	}

	if err := c.reload(ctx); err != nil {
		if hadOld {
			_ = os.WriteFile(path, []byte(oldConf), 0644)
		} else {
			_ = os.Remove(path)
		}
		return err
	}
	return nil
}

func (c *Controller) reload(ctx context.Context) error {
	fields := strings.Fields(c.cfg.ReloadCommand)
	if len(fields) == 0 {
		return apperrors.Gateway("reload command is not configured", nil)
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return apperrors.Gateway("reload proxy failed", fmt.Errorf("%s: %w", string(out), err))
	}
	return nil
}

func (c *Controller) runCertbot(ctx context.Context, domain string) error {
	if c.cfg.SkipCertIssue {
		return nil
	}
	fields := strings.Fields(c.cfg.CertbotCommand)
	fields = append(fields,
		"--non-interactive", "--agree-tos", "--register-unsafely-without-email",
		"--nginx", "--domain", domain,
	)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return apperrors.Gateway(fmt.Sprintf("certbot failed for %s", domain), fmt.Errorf("%s: %w", string(out), err))
	}
	return nil
}

const serviceTemplate = `server {
    listen 443 ssl;
    server_name {{ .Domain }};

    location / {
        {{ if .Auth }}auth_request /auth;{{ end }}
        proxy_pass http://127.0.0.1:{{ .GatewayPort }};
{{ range $replica, $server := .Servers }}        # upstream {{ $replica }}: {{ $server }}
{{ end }}    }
}
`

const entrypointTemplate = `server {
    listen 443 ssl;
    server_name {{ .Domain }};

    location / {
        proxy_pass {{ .ProxyPath }};
    }
}
`
