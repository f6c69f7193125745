package manifest

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/errors"
)

// Document is an uploaded manifest: its file name, the media type declared
// by whoever supplied it (may be empty), and its raw bytes.
type Document struct {
	Name      string
	MediaType string
	Data      []byte
}

// ReadFile loads a manifest from disk. The media type is left empty so it is
// derived from the file name or content.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: filepath.Base(path), Data: data}, nil
}

// MediaTypeOf resolves the media type of doc: the declared type if there is
// a useful one, else the type registered for the file extension, else the
// type sniffed from the content. Parameters are dropped.
func MediaTypeOf(doc Document) string {
	if mt := baseType(doc.MediaType); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if ext := filepath.Ext(doc.Name); ext != "" {
		if mt := baseType(mime.TypeByExtension(ext)); mt != "" {
			return mt
		}
	}
	return baseType(mimetype.Detect(doc.Data).String())
}

func baseType(s string) string {
	if s == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return mt
}

// IsJSON reports whether mediaType denotes a JSON document, including
// structured-syntax types such as application/manifest+json.
func IsJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Parse extracts the dependency entries of a package.json document in the
// order they appear.
//
// Errors:
//   - UNSUPPORTED_FILE_TYPE: doc is not a JSON document
//   - MALFORMED_MANIFEST: invalid JSON, a top level that is not an object,
//     a dependency map that is not an object, or a version that is not a string
//   - NO_DEPENDENCIES: no "dependencies" key, or a null one
//
// When a key repeats, its last value wins but it keeps its first position.
// With includeDev, devDependencies are appended after dependencies, skipping
// names already listed.
func Parse(doc Document, includeDev bool) ([]catalog.Entry, error) {
	if mt := MediaTypeOf(doc); !IsJSON(mt) {
		return nil, errors.New(errors.ErrCodeUnsupportedType, "%s is %s, not a JSON file", displayName(doc), mt)
	}

	deps, dev, err := scan(doc.Data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedManifest, err, "%s is not a valid package.json", displayName(doc))
	}
	if deps == nil {
		return nil, errors.New(errors.ErrCodeNoDependencies, "%s does not contain any dependencies", displayName(doc))
	}

	entries := deps.entries()
	if includeDev && dev != nil {
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			seen[e.Name] = true
		}
		for _, e := range dev.entries() {
			if !seen[e.Name] {
				entries = append(entries, e)
			}
		}
	}
	return entries, nil
}

func displayName(doc Document) string {
	if doc.Name == "" {
		return "manifest"
	}
	return doc.Name
}

// depMap is an insertion-ordered string map.
type depMap struct {
	names    []string
	versions map[string]string
}

func (m *depMap) set(name, version string) {
	if _, ok := m.versions[name]; !ok {
		m.names = append(m.names, name)
	}
	m.versions[name] = version
}

func (m *depMap) entries() []catalog.Entry {
	out := make([]catalog.Entry, len(m.names))
	for i, n := range m.names {
		out[i] = catalog.Entry{Name: n, VersionSpec: m.versions[n]}
	}
	return out
}

// utf8BOM is written by some Windows editors; npm ignores it.
var utf8BOM = []byte("\xef\xbb\xbf")

type syntaxError string

func (e syntaxError) Error() string { return string(e) }

// scan walks the top-level object with a token decoder so dependency order
// survives. A nil map means the key was absent or null.
func scan(data []byte) (deps, dev *depMap, err error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if tok != json.Delim('{') {
		return nil, nil, syntaxError("top level is not an object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)

		switch key {
		case "dependencies":
			if deps, err = readDeps(dec, key); err != nil {
				return nil, nil, err
			}
		case "devDependencies":
			if dev, err = readDeps(dec, key); err != nil {
				return nil, nil, err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, nil, err
			}
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, syntaxError("trailing data after top-level object")
	}
	return deps, dev, nil
}

func readDeps(dec *json.Decoder, key string) (*depMap, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if tok != json.Delim('{') {
		return nil, syntaxError(key + " is not an object")
	}

	m := &depMap{versions: make(map[string]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)

		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		version, ok := tok.(string)
		if !ok {
			return nil, syntaxError(key + "." + name + " is not a version string")
		}
		m.set(name, version)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return m, nil
}
