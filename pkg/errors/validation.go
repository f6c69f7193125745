package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxNameLen bounds any package name spliced into a registry URL.
const maxNameLen = 256

// forbiddenInName are substrings that could escape the registry path.
var forbiddenInName = []string{"..", "//", "\\", "\x00"}

// ValidatePackageName rejects names that are empty, longer than 256 bytes,
// contain control characters, or contain a substring that could walk out of
// the registry path. It says nothing about ecosystem naming rules; see
// [ValidateNpmPackageName].
func ValidatePackageName(name string) error {
	switch {
	case name == "":
		return New(ErrCodeInvalidPackage, "package name is empty")
	case len(name) > maxNameLen:
		return New(ErrCodeInvalidPackage, "package name longer than %d bytes", maxNameLen)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return New(ErrCodeInvalidPackage, "package name %q contains control characters", name)
	}
	for _, bad := range forbiddenInName {
		if strings.Contains(name, bad) {
			return New(ErrCodeInvalidPackage, "package name %q contains %q", name, bad)
		}
	}
	return nil
}

// npmPackageNameRegex matches valid npm package names. Legacy packages may
// carry uppercase letters, so case is not enforced.
var npmPackageNameRegex = regexp.MustCompile(`^(@[A-Za-z0-9-~][A-Za-z0-9-._~]*/)?[A-Za-z0-9-~][A-Za-z0-9-._~]*$`)

// ValidateNpmPackageName validates an npm package name, scoped or not.
func ValidateNpmPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !npmPackageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid npm package name: %q", name)
	}

	return nil
}

// ValidateVersion rejects version hints that cannot be used as a single
// registry path segment. Range operators are allowed; the registry decides
// what they resolve to.
func ValidateVersion(version string) error {
	if len(version) > 256 {
		return New(ErrCodeInvalidInput, "version too long (max 256 characters)")
	}
	for _, r := range version {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "version contains invalid control characters")
		}
	}
	if strings.ContainsAny(version, "/\\") || strings.Contains(version, "..") {
		return New(ErrCodeInvalidInput, "version contains invalid characters: %q", version)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
