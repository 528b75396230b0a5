package chunker

import (
	"path/filepath"
	"strings"
)

// Languages
const (
	LangGo     = "go"
	LangPython = "python"
)

var extensionLanguages = map[string]string{
	".go":    LangGo,
	".py":    LangPython,
	".pyi":   LangPython,
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
}

// LanguageFor returns the language of path by extension, "" when unsupported
func LanguageFor(path string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(path))]
}

// Supported reports whether files at path are indexed
func Supported(path string) bool {
	return LanguageFor(path) != ""
}
