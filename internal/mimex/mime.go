// Package mimex maps file names and URLs to content types using a fixed
// extension table, so results do not depend on the host's mime database.
package mimex

import "strings"

// DefaultType is returned when no extension matches.
const DefaultType = "application/octet-stream"

// Class is a coarse grouping of content types used for UI affordances.
type Class string

const (
	Image        Class = "image"
	Document     Class = "document"
	Spreadsheet  Class = "spreadsheet"
	Presentation Class = "presentation"
	Archive      Class = "archive"
)

var types = map[string]string{
	// documents
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"odt":  "application/vnd.oasis.opendocument.text",
	"rtf":  "application/rtf",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"html": "text/html",
	"htm":  "text/html",
	"csv":  "text/csv",
	"json": "application/json",
	"xml":  "application/xml",

	// spreadsheets
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",

	// presentations
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"odp":  "application/vnd.oasis.opendocument.presentation",

	// images
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",

	// archives
	"zip": "application/zip",
	"rar": "application/vnd.rar",
	"7z":  "application/x-7z-compressed",
	"tar": "application/x-tar",
	"gz":  "application/gzip",
}

var classes = map[Class][]string{
	Image:        {"png", "jpg", "jpeg", "gif", "webp", "svg", "bmp", "tif", "tiff"},
	Document:     {"pdf", "doc", "docx", "odt", "rtf", "txt", "md"},
	Spreadsheet:  {"xls", "xlsx", "ods", "csv"},
	Presentation: {"ppt", "pptx", "odp"},
	Archive:      {"zip", "rar", "7z", "tar", "gz"},
}

// Extension returns the lower-cased trailing extension of nameOrURL: the
// longest run of ASCII letters and digits after the last '.' of the final
// path segment, ignoring any query string or fragment. It returns "" when
// there is none.
func Extension(nameOrURL string) string {
	s := nameOrURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}

	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return ""
	}

	tail := s[dot+1:]
	n := 0
	for n < len(tail) && isAlnum(tail[n]) {
		n++
	}
	return strings.ToLower(tail[:n])
}

// Resolve returns the content type for nameOrURL, or DefaultType.
func Resolve(nameOrURL string) string {
	if t, ok := types[Extension(nameOrURL)]; ok {
		return t
	}
	return DefaultType
}

// IsOfType reports whether name's extension belongs to class.
func IsOfType(name string, class Class) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	for _, e := range classes[class] {
		if e == ext {
			return true
		}
	}
	return false
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
