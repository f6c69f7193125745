// Package manifest imports the dependencies declared in a package.json.
//
// # Parsing
//
// [Parse] accepts JSON documents only; the media type comes from the
// declared type, the file extension or, failing both, content sniffing.
// Entries come out in document order. Three failures are distinguished by
// error code so callers can phrase a notice for each:
//
//   - UNSUPPORTED_FILE_TYPE: not a JSON document
//   - MALFORMED_MANIFEST: not a well-formed package.json
//   - NO_DEPENDENCIES: well-formed, but no "dependencies" map
//
// # Importing
//
// [Importer.Import] fetches one record per entry, concurrently, using the
// version spec with a single leading caret removed ("^4.17.21" asks for
// 4.17.21). Other range operators are forwarded untouched and usually fail
// to resolve; such failures are dropped, never fatal.
//
//	im := manifest.NewImporter(fetcher, manifest.Options{})
//	doc, _ := manifest.ReadFile("package.json")
//	res, err := im.Import(ctx, doc)
package manifest
