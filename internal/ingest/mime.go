package ingest

import (
	"net/http"
	"path/filepath"
	"strings"
)

// MIME types the converter distinguishes.
const (
	MimePlain    = "text/plain"
	MimeMarkdown = "text/markdown"
	MimePDF      = "application/pdf"
	MimeUnknown  = "application/octet-stream"
)

// mimeTypes maps file extensions to MIME types.
var mimeTypes = map[string]string{
	// Text
	".txt":  MimePlain,
	".text": MimePlain,
	".log":  MimePlain,
	".rst":  "text/x-rst",

	// Markdown
	".md":       MimeMarkdown,
	".mdx":      MimeMarkdown,
	".markdown": MimeMarkdown,

	// Office and print formats, handled by the external converter
	".pdf":  MimePDF,
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".epub": "application/epub+zip",

	// Web
	".html": "text/html",
	".htm":  "text/html",
}

// MimeTypeForPath returns the MIME type for a file path from its extension.
// Returns MimeUnknown for unknown extensions.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return MimeUnknown
}

// DetectMimeType sniffs the leading bytes of a file and falls back to the
// extension when the content is ambiguous. Content wins over a misleading
// extension for PDFs.
func DetectMimeType(path string, head []byte) string {
	sniffed := http.DetectContentType(head)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}

	byExt := MimeTypeForPath(path)
	switch {
	case sniffed == MimePDF:
		return MimePDF
	case sniffed == MimePlain && byExt == MimeUnknown:
		return MimePlain
	case byExt != MimeUnknown:
		return byExt
	default:
		return sniffed
	}
}

// IsText reports whether a MIME type is read directly without conversion.
func IsText(mime string) bool {
	return mime == MimePlain || mime == MimeMarkdown || mime == "text/x-rst"
}
