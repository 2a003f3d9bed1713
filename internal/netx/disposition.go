package netx

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultFilename is used when a response names no file.
const DefaultFilename = "download"

// FilenameFromDisposition extracts the file name from a Content-Disposition
// header value. RFC 2231 encoded names (filename*) are decoded. Directory
// components are stripped.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return DefaultFilename
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return DefaultFilename
	}
	name := strings.TrimSpace(params["filename"])
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return DefaultFilename
	}
	return name
}
