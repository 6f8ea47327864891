package textutil

import (
	"path"
	"strings"
)

// maxFileNameRunes bounds stored filenames; the upload server echoes them back.
const maxFileNameRunes = 128

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName reduces a client-supplied name to a safe base name.
// Directory components are dropped, unsafe characters are replaced, and
// control characters are removed. Empty results return "".
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, fileNameReplacer.Replace(name))
	name = strings.TrimLeft(strings.TrimSpace(name), ".")
	if name == "" {
		return ""
	}
	ext := path.Ext(name)
	if runes := []rune(name); len(runes) > maxFileNameRunes {
		keep := maxFileNameRunes - len([]rune(ext))
		if keep < 1 {
			return string(runes[:maxFileNameRunes])
		}
		name = string([]rune(strings.TrimSuffix(name, ext))[:keep]) + ext
	}
	return name
}

// Truncate shortens value to at most limit runes, marking the cut with an ellipsis.
func Truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
