package config

import (
	"net/url"
	"strings"

	"github.com/nao1215/siteaudit/internal/model"
)

// SiteConfig holds the configuration for auditing one organization's site.
type SiteConfig struct {
	// URL is the base URL of the site. Every crawled page must start with it.
	URL string `yaml:"url,omitempty"`

	// Mission is the organization's mission statement. When empty the
	// statement is generated from the homepage text.
	Mission string `yaml:"mission,omitempty"`

	// Stakeholders overrides the stakeholder list for this site.
	Stakeholders model.Stakeholders `yaml:"stakeholders,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the global page cap for this site.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are URL path globs to skip during crawling.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path globs to follow during crawling.
	// If specified, only matching paths are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .siteaudit configuration file.
type File struct {
	// Sites maps organization names to their site configuration.
	// The name scopes the organization's snapshot directory.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is applied to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Stakeholders is the default stakeholder list. When empty the
	// built-in nonprofit audiences are used.
	Stakeholders model.Stakeholders `yaml:"stakeholders,omitempty"`
}

// GetSiteConfig returns the configuration for an organization merged with defaults.
func (cf *File) GetSiteConfig(name string) SiteConfig {
	result := cf.Defaults
	if len(result.Stakeholders) == 0 {
		result.Stakeholders = cf.Stakeholders
	}

	if site, ok := cf.Sites[name]; ok {
		result = mergeSiteConfig(result, site)
	}
	if len(result.Stakeholders) == 0 {
		result.Stakeholders = model.DefaultStakeholders()
	}
	return result
}

// mergeSiteConfig overlays the non-zero fields of override onto base.
func mergeSiteConfig(base, override SiteConfig) SiteConfig {
	result := base
	if override.URL != "" {
		result.URL = override.URL
	}
	if override.Mission != "" {
		result.Mission = override.Mission
	}
	if len(override.Stakeholders) > 0 {
		result.Stakeholders = override.Stakeholders
	}
	if override.MaxPages != 0 {
		result.MaxPages = override.MaxPages
	}
	if len(override.Headers) > 0 {
		headers := make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			headers[k] = v
		}
		for k, v := range override.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}
	if len(override.IgnorePatterns) > 0 {
		result.IgnorePatterns = override.IgnorePatterns
	}
	if len(override.FollowPatterns) > 0 {
		result.FollowPatterns = override.FollowPatterns
	}
	return result
}

// Resolve turns a CLI target into an organization name and its site configuration.
// A target is either an organization listed under sites, or an absolute
// site URL, in which case the organization is named after the host.
func (cf *File) Resolve(target string) (string, SiteConfig, error) {
	if _, ok := cf.Sites[target]; ok {
		site := cf.GetSiteConfig(target)
		base, err := NormalizeBaseURL(site.URL)
		if err != nil {
			return "", SiteConfig{}, err
		}
		site.URL = base
		return target, site, nil
	}

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return "", SiteConfig{}, ErrUnknownSite
	}
	base, err := NormalizeBaseURL(target)
	if err != nil {
		return "", SiteConfig{}, err
	}
	u, _ := url.Parse(base)
	name := u.Hostname()

	site := cf.GetSiteConfig(name)
	site.URL = base
	return name, site, nil
}

// NormalizeBaseURL validates a site URL and makes sure a bare host gets a
// trailing slash, so that "https://example.org" and "https://example.org/"
// produce the same prefix.
func NormalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidSiteURL
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
