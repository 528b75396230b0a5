package chunker

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxselect/pkg/types"
)

func newTestChunker(opts ...Option) *Chunker {
	return New(append([]Option{WithTokenCounter(EstimatedCounter{})}, opts...)...)
}

func findChunk(chunks []*types.Chunk, name string) *types.Chunk {
	for _, c := range chunks {
		if c.Name == name {
			return c
		}
	}
	return nil
}

const goSource = `package testpkg

import (
	"fmt"
	"strings"
)

// User is a person
type User struct {
	ID   int
	Name string
}

// Greet prints a greeting message
func Greet(name string) {
	fmt.Println("Hello, " + strings.TrimSpace(name))
}

func (u *User) GetID() int {
	return u.ID
}

var defaultUser = User{ID: 1}
`

func TestChunk_Go(t *testing.T) {
	c := newTestChunker()
	chunks := c.Chunk("default", "pkg/user.go", []byte(goSource))
	require.Len(t, chunks, 5)

	header := chunks[0]
	assert.Equal(t, types.ChunkModule, header.Kind)
	assert.Equal(t, "testpkg", header.Name)
	assert.Contains(t, header.Content, `"strings"`)

	user := findChunk(chunks, "User")
	require.NotNil(t, user)
	assert.Equal(t, types.ChunkTypeDecl, user.Kind)
	assert.True(t, strings.HasPrefix(user.Content, "// User is a person"))
	assert.Equal(t, 8, user.StartLine)
	assert.Equal(t, 12, user.EndLine)

	greet := findChunk(chunks, "Greet")
	require.NotNil(t, greet)
	assert.Equal(t, types.ChunkFunction, greet.Kind)
	assert.Contains(t, greet.Content, "fmt.Println")

	method := findChunk(chunks, "User.GetID")
	require.NotNil(t, method)
	assert.Equal(t, types.ChunkMethod, method.Kind)

	vars := findChunk(chunks, "defaultUser")
	require.NotNil(t, vars)
	assert.Equal(t, types.ChunkVarGroup, vars.Kind)

	for _, chunk := range chunks {
		assert.Equal(t, "default", chunk.ProjectID)
		assert.Equal(t, "pkg/user.go", chunk.FilePath)
		assert.Equal(t, LangGo, chunk.Language)
		assert.Equal(t, sha256.Sum256([]byte(chunk.Content)), chunk.ContentHash)
		assert.Equal(t, EstimateTokenCount(chunk.Content), chunk.TokenCount)
		assert.NoError(t, chunk.Validate())
	}
}

const pythonSource = `import os
from typing import Optional

MAX_USERS = 100


class UserService:
    def get_user(self, user_id):
        return self.db.get(user_id)


@cached
def load_config(path: str) -> Optional[dict]:
    return read(path)

if __name__ == "__main__":
    main()
`

func TestChunk_Python(t *testing.T) {
	c := newTestChunker()
	chunks := c.Chunk("default", "app/service.py", []byte(pythonSource))
	require.Len(t, chunks, 3)

	module := chunks[0]
	assert.Equal(t, types.ChunkModule, module.Kind)
	assert.Contains(t, module.Content, "import os")
	assert.Contains(t, module.Content, "MAX_USERS = 100")
	assert.Contains(t, module.Content, `if __name__ == "__main__":`)
	assert.NotContains(t, module.Content, "class UserService")
	assert.Equal(t, 1, module.StartLine)
	assert.Equal(t, 17, module.EndLine)

	service := findChunk(chunks, "UserService")
	require.NotNil(t, service)
	assert.Equal(t, types.ChunkClass, service.Kind)
	assert.Equal(t, 7, service.StartLine)
	assert.Equal(t, 9, service.EndLine)

	loader := findChunk(chunks, "load_config")
	require.NotNil(t, loader)
	assert.Equal(t, types.ChunkFunction, loader.Kind)
	assert.True(t, strings.HasPrefix(loader.Content, "@cached"))
	assert.Equal(t, LangPython, loader.Language)
}

func TestChunk_Windows(t *testing.T) {
	c := newTestChunker(WithWindowLines(10))

	var b strings.Builder
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}

	chunks := c.Chunk("default", "notes.md", []byte(b.String()))
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 10, chunks[0].EndLine)
	assert.Equal(t, 21, chunks[2].StartLine)
	assert.Equal(t, types.ChunkWindow, chunks[2].Kind)
	assert.Equal(t, "markdown", chunks[2].Language)
}

func TestChunk_BrokenPythonFallsBackToWindows(t *testing.T) {
	c := newTestChunker()
	chunks := c.Chunk("default", "broken.py", []byte("def broken(:\n    pass\n"))
	require.Len(t, chunks, 1)
	assert.Equal(t, types.ChunkWindow, chunks[0].Kind)
}

func TestChunk_Empty(t *testing.T) {
	c := newTestChunker()
	assert.Empty(t, c.Chunk("default", "empty.go", []byte("  \n\n")))
}

func TestChunk_SplitsOversizedDeclarations(t *testing.T) {
	c := newTestChunker(WithWindowLines(20))

	var b strings.Builder
	b.WriteString("package big\n\nfunc Big() {\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "\tprintln(%q)\n", strings.Repeat("x", 100))
	}
	b.WriteString("}\n")

	chunks := c.Chunk("default", "big.go", []byte(b.String()))
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Equal(t, "Big", chunk.Name)
		assert.Equal(t, types.ChunkFunction, chunk.Kind)
	}
	assert.Equal(t, 3, chunks[0].StartLine)
	assert.Equal(t, 54, chunks[2].EndLine)
}

func TestChunkFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0644))

	c := newTestChunker()
	chunks, err := c.ChunkFile("default", path, "main.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "main", chunks[0].Name)

	_, err = c.ChunkFile("default", filepath.Join(dir, "missing.go"), "missing.go")
	assert.Error(t, err)
}

func TestChunkText(t *testing.T) {
	c := newTestChunker()

	chunk, err := c.ChunkText("default", "snippet-1", "python", "def f():\n    return 1")
	require.NoError(t, err)
	assert.Equal(t, types.ChunkSnippet, chunk.Kind)
	assert.Equal(t, 2, chunk.EndLine)
	assert.NoError(t, chunk.Validate())

	_, err = c.ChunkText("default", "snippet-2", "", "   ")
	assert.ErrorIs(t, err, types.ErrEmptyContent)
}

func TestLanguageFor(t *testing.T) {
	tests := map[string]string{
		"main.go":       LangGo,
		"app/models.py": LangPython,
		"web/App.TSX":   "typescript",
		"README.md":     "markdown",
		"image.png":     "",
		"Makefile":      "",
	}
	for path, want := range tests {
		assert.Equal(t, want, LanguageFor(path), path)
		assert.Equal(t, want != "", Supported(path), path)
	}
}

func TestEstimatedCounter(t *testing.T) {
	assert.Equal(t, 2, EstimatedCounter{}.Count("12345678"))
	assert.Equal(t, 0, EstimatedCounter{}.Count("abc"))
	assert.Equal(t, 3, (&TiktokenCounter{}).Count("123456789012"))
}
