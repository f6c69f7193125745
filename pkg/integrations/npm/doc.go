// Package npm provides an HTTP client for the npm registry API.
//
// # Overview
//
// This package fetches package metadata and search results from the npm
// registry (https://registry.npmjs.org) or any mirror speaking the same API.
//
// # Usage
//
//	client := npm.NewClient(fileCache, 24*time.Hour, npm.Options{})
//
//	pkg, err := client.FetchPackage(ctx, "express", "", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(pkg.Name, pkg.Version, pkg.Tarball)
//
//	names, err := client.Search(ctx, "left-pad", npm.MaxSearchSize)
//
// # Version Selection
//
// An empty version fetches the full package document and reads the version
// tagged "latest" in dist-tags. A non-empty version is sent to the registry as
// GET /<name>/<version>; the registry resolves exact versions and dist-tags
// and answers with the version document, whose "version" field is the
// concrete version used.
//
// # Field Shapes
//
// The registry is loose about field types. license may be a string, a
// {"type"} object or a legacy "licenses" array; author may be an object or a
// "Name <email> (url)" string; repository may be a string or a {"url"}
// object. Repository URLs are normalized to https form.
//
// # Caching
//
// Package documents are cached per (name, version) through the shared
// [integrations.Client]. Pass refresh=true to bypass the cache. Search
// results are never cached.
//
// [integrations.Client]: github.com/matzehuels/curator/pkg/integrations.Client
package npm
