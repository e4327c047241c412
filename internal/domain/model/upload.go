//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"io"
	"path"
	"regexp"
	"strings"
)

// BrandingFolder is the upload folder whose images replace the site logo.
const BrandingFolder = "branding"

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// UploadInput describes one file to put into object storage.
type UploadInput struct {
	Folder      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	UploadedBy  string
}

// UploadResult is the stored object location.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// SanitizeFolder keeps only safe path segments; empty input maps to "uploads".
func SanitizeFolder(folder string) string {
	var parts []string
	for _, seg := range strings.Split(folder, "/") {
		seg = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(seg), "-")
		seg = strings.Trim(seg, ".-")
		if seg != "" {
			parts = append(parts, strings.ToLower(seg))
		}
	}
	if len(parts) == 0 {
		return "uploads"
	}
	return strings.Join(parts, "/")
}

// SanitizeFilename strips directories and unsafe characters from a client filename.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeKeyChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, ".-")
	if name == "" || name == "/" {
		return "file"
	}
	if len(name) > 128 {
		name = name[len(name)-128:]
	}
	return name
}
