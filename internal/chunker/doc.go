// Package chunker splits source files into chunks for embedding and search.
//
// Chunks follow natural code boundaries:
//   - Go: the package clause and imports, then one chunk per top-level
//     function, method, type or var/const group (doc comments included)
//   - Python: one chunk per top-level class or function, decorators
//     included, plus a module chunk with the remaining statements
//   - Other languages and files that do not parse: 60-line windows
//
// Declarations whose token count exceeds MaxTokensPerChunk are split into
// windows that keep the declaration's kind and name.
//
// Token counts use the tiktoken cl100k_base encoding. When the encoding
// cannot be loaded the count falls back to chars/4.
//
//	c := chunker.New()
//	chunks, err := c.ChunkFile("default", "/repo/app/models.py", "app/models.py")
package chunker
