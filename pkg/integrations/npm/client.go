package npm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/curator/pkg/cache"
	"github.com/matzehuels/curator/pkg/integrations"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// MaxSearchSize is the number of candidates a search asks for.
const MaxSearchSize = 10

// PackageInfo is the metadata of one package at one concrete version.
// Empty strings mean the registry did not publish the field.
type PackageInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	License     string `json:"license,omitempty"`
	Author      string `json:"author,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Tarball     string `json:"tarball,omitempty"`
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL           string        // registry root, DefaultRegistry if empty
	Timeout           time.Duration // per-request timeout, 10s if zero
	RequestsPerSecond float64       // client-side rate limit, unlimited if zero
	Retries           int           // extra attempts for transient failures
	Keyer             cache.Keyer   // cache key builder
}

type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates an npm registry client caching responses in c for ttl.
// A nil cache disables caching.
func NewClient(c cache.Cache, ttl time.Duration, opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultRegistry
	}
	hc := integrations.NewClient(c, "npm", ttl, nil).
		WithTimeout(opts.Timeout).
		WithRateLimit(opts.RequestsPerSecond).
		WithRetries(opts.Retries).
		WithKeyer(opts.Keyer)
	return &Client{Client: hc, baseURL: base}
}

// BaseURL returns the registry root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchPackage returns the metadata of pkg. An empty version resolves the
// "latest" dist-tag; otherwise the registry resolves version itself and the
// returned PackageInfo carries the concrete version it answered with.
func (c *Client) FetchPackage(ctx context.Context, pkg, version string, refresh bool) (*PackageInfo, error) {
	pkg = strings.TrimSpace(pkg)
	version = strings.TrimSpace(version)
	if pkg == "" {
		return nil, errors.New("npm: empty package name")
	}
	key := c.Keyer().PackageKey("npm", pkg, version)

	var info PackageInfo
	err := c.Cached(ctx, key, refresh, &info, func() error {
		if version == "" {
			return c.fetchLatest(ctx, pkg, &info)
		}
		return c.fetchVersion(ctx, pkg, version, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetchLatest(ctx context.Context, pkg string, info *PackageInfo) error {
	var data registryResponse
	if err := c.Get(ctx, c.baseURL+"/"+integrations.PathEscape(pkg), &data); err != nil {
		return wrapNotFound(err, pkg, "")
	}
	if data.Name == "" {
		return fmt.Errorf("npm: package %s: response has no name", pkg)
	}

	latest := data.DistTags.Latest
	if latest == "" {
		return fmt.Errorf("npm: package %s: no latest dist-tag", pkg)
	}
	v, ok := data.Versions[latest]
	if !ok {
		return fmt.Errorf("npm: package %s: version %s not found", pkg, latest)
	}

	*info = v.info(data.Name, latest)
	if data.Description != "" {
		info.Description = data.Description
	}
	if repo := integrations.NormalizeRepoURL(extractField(data.Repository, "url")); repo != "" {
		info.Repository = repo
	}
	return nil
}

func (c *Client) fetchVersion(ctx context.Context, pkg, version string, info *PackageInfo) error {
	var v versionDetails
	url := c.baseURL + "/" + integrations.PathEscape(pkg) + "/" + integrations.PathEscape(version)
	if err := c.Get(ctx, url, &v); err != nil {
		return wrapNotFound(err, pkg, version)
	}
	if v.Name == "" || v.Version == "" {
		return fmt.Errorf("npm: package %s@%s: response has no name or version", pkg, version)
	}
	*info = v.info(v.Name, v.Version)
	return nil
}

// Search returns up to size candidate names for query in the order the
// registry ranked them. size is clamped to [1, MaxSearchSize].
func (c *Client) Search(ctx context.Context, query string, size int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	size = min(max(size, 1), MaxSearchSize)

	url := c.baseURL + "/-/v1/search?text=" + integrations.URLEncode(query) + "&size=" + strconv.Itoa(size)
	var data searchResponse
	if err := c.Get(ctx, url, &data); err != nil {
		return nil, fmt.Errorf("npm: search %q: %w", query, err)
	}

	names := make([]string, 0, len(data.Objects))
	for _, obj := range data.Objects {
		if obj.Package.Name != "" {
			names = append(names, obj.Package.Name)
		}
		if len(names) == size {
			break
		}
	}
	return names, nil
}

func wrapNotFound(err error, pkg, version string) error {
	if !errors.Is(err, integrations.ErrNotFound) {
		return err
	}
	if version == "" {
		return fmt.Errorf("%w: npm package %s", err, pkg)
	}
	return fmt.Errorf("%w: npm package %s@%s", err, pkg, version)
}

func (v versionDetails) info(name, version string) PackageInfo {
	return PackageInfo{
		Name:        name,
		Version:     version,
		Description: v.Description,
		License:     extractLicense(v.License, v.Licenses),
		Author:      extractAuthor(v.Author),
		Repository:  integrations.NormalizeRepoURL(extractField(v.Repository, "url")),
		Tarball:     v.Dist.Tarball,
	}
}

func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

// extractLicense handles "MIT", {"type": "MIT"} and the legacy
// "licenses": [{"type": ...}, ...] form.
func extractLicense(license, licenses any) string {
	if s := extractField(license, "type"); s != "" {
		return s
	}
	list, ok := licenses.([]any)
	if !ok {
		return ""
	}
	var types []string
	for _, l := range list {
		if s := extractField(l, "type"); s != "" {
			types = append(types, s)
		}
	}
	return strings.Join(types, " OR ")
}

// extractAuthor handles {"name": ...} and "Name <email> (url)".
func extractAuthor(v any) string {
	s := extractField(v, "name")
	if i := strings.IndexAny(s, "<("); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

type registryResponse struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Repository  any                       `json:"repository"`
	DistTags    distTags                  `json:"dist-tags"`
	Versions    map[string]versionDetails `json:"versions"`
}

type distTags struct {
	Latest string `json:"latest"`
}

type versionDetails struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	License     any    `json:"license"`
	Licenses    any    `json:"licenses"`
	Author      any    `json:"author"`
	Repository  any    `json:"repository"`
	Dist        dist   `json:"dist"`
}

type dist struct {
	Tarball string `json:"tarball"`
}

type searchResponse struct {
	Objects []struct {
		Package struct {
			Name string `json:"name"`
		} `json:"package"`
	} `json:"objects"`
}
