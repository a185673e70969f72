package config

// SiteConfig holds site-specific configuration for a single host.
// Different sites mark up their chapter bodies and "next chapter" links
// differently, so the selectors are the main thing users override.
type SiteConfig struct {
	// ContentSelector is the CSS selector for the element whose inner HTML
	// becomes the chapter fragment. If empty, DefaultContentSelector is used.
	ContentSelector string `yaml:"contentSelector,omitempty"`

	// NextSelector is the CSS selector for the anchor linking to the next
	// chapter. If empty, DefaultNextSelector is used.
	NextSelector string `yaml:"nextSelector,omitempty"`

	// Cookie is an HTTP cookie to send when fetching from this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .bookbinder configuration file.
type File struct {
	// Sites maps host names to their site-specific configurations.
	// Keys should be the bare host (e.g., "www.royalroad.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.ContentSelector != "" {
			result.ContentSelector = siteConfig.ContentSelector
		}
		if siteConfig.NextSelector != "" {
			result.NextSelector = siteConfig.NextSelector
		}
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range siteConfig.Headers {
				result.Headers[k] = v
			}
		}
	}

	return result
}
