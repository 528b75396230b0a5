package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.5))
	assert.Equal(t, 1.0, ClampScore(1.7))
	assert.Equal(t, 0.42, ClampScore(0.42))
}

func TestSortByScore_StableForTies(t *testing.T) {
	items := []ContextItem{
		{Text: "a", Score: 0.5},
		{Text: "b", Score: 0.9},
		{Text: "c", Score: 0.5},
		{Text: "d", Score: 0.5},
	}
	SortByScore(items)

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, texts)
}

func TestTruncate(t *testing.T) {
	items := []ContextItem{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	assert.Len(t, Truncate(items, 2), 2)
	assert.Len(t, Truncate(items, 10), 3)
	assert.Empty(t, Truncate(items, 0))
	assert.Empty(t, Truncate(items, -1))
}

func TestStructureSet_Intersect(t *testing.T) {
	a := NewStructureSet()
	a.AddClass("User")
	a.AddFunction("get_user")
	a.AddFunction("save")
	a.AddVariable("x")

	b := NewStructureSet()
	b.AddClass("User")
	b.AddFunction("save")
	b.AddFunction("get_user")
	b.AddVariable("y")

	overlap := a.Intersect(b)
	assert.Equal(t, Overlap{Classes: 1, Functions: 2, Variables: 0}, overlap)
	assert.Equal(t, 4, a.Len())
}

func TestStructureSet_ZeroValueAdd(t *testing.T) {
	var s StructureSet
	s.AddClass("Foo")
	s.AddClass("Foo")
	s.AddVariable("")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"Foo"}, s.SortedClasses())
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    StrategyName
		wantErr bool
	}{
		{"semantic", StrategySemantic, false},
		{"Balanced", StrategyBalanced, false},
		{" AUTO ", StrategyAuto, false},
		{"", StrategyAuto, false},
		{"conversation", StrategyConversation, false},
		{"random", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunk_Validate(t *testing.T) {
	c := &Chunk{
		ProjectID: "demo",
		Content:   "def f():\n    return 1\n",
		StartLine: 1,
		EndLine:   2,
		Kind:      ChunkFunction,
	}
	require.NoError(t, c.Validate())

	c.Kind = "bogus"
	assert.Error(t, c.Validate())

	c.Kind = ChunkFunction
	c.StartLine = 3
	assert.Error(t, c.Validate())
}

func TestChunk_ToContextItem(t *testing.T) {
	c := &Chunk{ID: 7, ProjectID: "demo", FilePath: "a.py", Content: "x = 1", Kind: ChunkModule, Name: "a"}
	item := c.ToContextItem(1.3)

	assert.Equal(t, 1.0, item.Score)
	assert.Equal(t, "a.py", item.MetaString(MetaFilename, "unknown"))
	assert.Equal(t, "unknown", item.MetaString("missing", "unknown"))
}

func TestSessionHistoryEntry(t *testing.T) {
	e := SessionHistoryEntry{
		Command: CommandGenerate,
		Args:    map[string]any{"prompt": "write a parser", "count": 3},
		Result:  map[string]any{"output_file": "parser.py"},
	}
	assert.Equal(t, "write a parser", e.ArgString("prompt"))
	assert.Equal(t, "", e.ArgString("count"))
	assert.True(t, e.Succeeded())
	assert.Equal(t, "parser.py", e.OutputFile())

	e.Result = map[string]any{}
	e.Args[ArgOutput] = "out.py"
	assert.Equal(t, "out.py", e.OutputFile())

	e.Error = "boom"
	assert.False(t, e.Succeeded())
	assert.Empty(t, e.OutputFile())
}
