package lexer

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/polylex/pkg/core"
	"github.com/leapstack-labs/polylex/pkg/token"
)

type tk struct {
	typ    string
	lexeme string
}

func simplify(toks []token.Token) []tk {
	out := make([]tk, len(toks))
	for i, t := range toks {
		out[i] = tk{t.Type, t.Lexeme}
	}
	return out
}

func TestListBuiltinLanguages(t *testing.T) {
	e := MustNew()

	data, err := e.ListBuiltinLanguages()
	require.NoError(t, err)

	var list []core.BuiltinLanguage
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, []core.BuiltinLanguage{
		{ID: "c", Name: "C"},
		{ID: "cpp", Name: "C++"},
		{ID: "java", Name: "Java"},
		{ID: "python", Name: "Python"},
		{ID: "js", Name: "JavaScript"},
	}, list)
}

func TestTokenize_PythonAssignment(t *testing.T) {
	e := MustNew()

	data, err := e.Tokenize("x = 1", "python")
	require.NoError(t, err)

	res, err := token.Decode(data)
	require.NoError(t, err)
	assert.False(t, res.HasError())
	assert.Equal(t, []token.Token{
		{Type: token.Identifier, Lexeme: "x", Line: 1, Column: 1},
		{Type: token.Operator, Lexeme: "=", Line: 1, Column: 3},
		{Type: token.Integer, Lexeme: "1", Line: 1, Column: 5},
	}, res.Tokens)
}

func TestTokenize_Languages(t *testing.T) {
	tests := []struct {
		name   string
		lang   string
		source string
		want   []tk
	}{
		{
			name:   "c declaration",
			lang:   "c",
			source: "int main(void) { return 0x1F; }",
			want: []tk{
				{token.Type, "int"}, {token.Identifier, "main"}, {token.Delimiter, "("},
				{token.Type, "void"}, {token.Delimiter, ")"}, {token.Delimiter, "{"},
				{token.Keyword, "return"}, {token.Hex, "0x1F"}, {token.Delimiter, ";"},
				{token.Delimiter, "}"},
			},
		},
		{
			name:   "cpp scope and comment",
			lang:   "cpp",
			source: "std::cout << 'a'; // hi",
			want: []tk{
				{token.Identifier, "std"}, {token.Operator, "::"}, {token.Identifier, "cout"},
				{token.Operator, "<<"}, {token.CharLiteral, "'a'"}, {token.Delimiter, ";"},
				{token.Comment, "// hi"},
			},
		},
		{
			name:   "java floats",
			lang:   "java",
			source: "double d = 1.5e-3;",
			want: []tk{
				{token.Type, "double"}, {token.Identifier, "d"}, {token.Operator, "="},
				{token.Float, "1.5e-3"}, {token.Delimiter, ";"},
			},
		},
		{
			name:   "python triple quoted string",
			lang:   "python",
			source: `def f(): return """a "b" c""" # done`,
			want: []tk{
				{token.Keyword, "def"}, {token.Identifier, "f"}, {token.Delimiter, "("},
				{token.Delimiter, ")"}, {token.Delimiter, ":"}, {token.Keyword, "return"},
				{token.StringLiteral, `"""a "b" c"""`}, {token.Comment, "# done"},
			},
		},
		{
			name:   "js strict equality and escapes",
			lang:   "js",
			source: `if (a === "x\"y") { b => c }`,
			want: []tk{
				{token.Keyword, "if"}, {token.Delimiter, "("}, {token.Identifier, "a"},
				{token.Operator, "==="}, {token.StringLiteral, `"x\"y"`}, {token.Delimiter, ")"},
				{token.Delimiter, "{"}, {token.Identifier, "b"}, {token.Operator, "=>"},
				{token.Identifier, "c"}, {token.Delimiter, "}"},
			},
		},
		{
			name:   "block comment spans lines",
			lang:   "c",
			source: "/* a\n b */x",
			want:   []tk{{token.Comment, "/* a\n b */"}, {token.Identifier, "x"}},
		},
	}

	e := MustNew()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.TokenizeResult(tt.source, tt.lang)
			assert.Empty(t, res.Error)
			assert.Equal(t, tt.want, simplify(res.Tokens))
		})
	}
}

func TestTokenize_Positions(t *testing.T) {
	res := MustNew().TokenizeResult("a\n  bb\n\tc", "js")
	require.Len(t, res.Tokens, 3)
	assert.Equal(t, [2]int{1, 1}, [2]int{res.Tokens[0].Line, res.Tokens[0].Column})
	assert.Equal(t, [2]int{2, 3}, [2]int{res.Tokens[1].Line, res.Tokens[1].Column})
	assert.Equal(t, [2]int{3, 2}, [2]int{res.Tokens[2].Line, res.Tokens[2].Column})
}

func TestTokenize_PartialResults(t *testing.T) {
	e := MustNew()

	t.Run("unknown character", func(t *testing.T) {
		res := e.TokenizeResult("a $ b", "c")
		assert.Equal(t, []tk{{token.Identifier, "a"}, {token.Unknown, "$"}, {token.Identifier, "b"}}, simplify(res.Tokens))
		assert.Contains(t, res.Error, "unexpected character '$' at line 1, column 3")
		assert.True(t, res.Partial())
	})

	t.Run("unterminated string", func(t *testing.T) {
		res := e.TokenizeResult(`s = "abc`, "python")
		require.Len(t, res.Tokens, 3)
		assert.Equal(t, tk{token.StringLiteral, `"abc`}, simplify(res.Tokens)[2])
		assert.Contains(t, res.Error, "unterminated string literal starting at line 1, column 5")
	})

	t.Run("unterminated comment", func(t *testing.T) {
		res := e.TokenizeResult("x /* never closed", "cpp")
		require.Len(t, res.Tokens, 2)
		assert.Equal(t, token.Comment, res.Tokens[1].Type)
		assert.Contains(t, res.Error, "unterminated comment")
	})
}

func TestTokenize_UnknownLanguage(t *testing.T) {
	data, err := MustNew().Tokenize("x", "cobol")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tokens":[],"error":"unknown language \"cobol\""}`, string(data))
}

func TestTokenize_EmptySource(t *testing.T) {
	data, err := MustNew().Tokenize("", "c")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tokens":[]}`, string(data))
}

func TestRegisterLanguage(t *testing.T) {
	e := MustNew()

	ruby := json.RawMessage(`{
		"name": "Ruby",
		"keywords": ["def", "end", "puts"],
		"characterSets": {"operators": "+-*/=<>!", "delimiters": "()[]{},."},
		"commentConfig": {"singleLineCommentStarts": ["#"]},
		"stringConfig": {"stringDelimiters": ["\"", "'"]}
	}`)
	require.NoError(t, e.RegisterLanguage("Ruby", ruby))

	res := e.TokenizeResult(`def hi; puts 'x' end # c`, "ruby")
	assert.Equal(t, []tk{
		{token.Keyword, "def"}, {token.Identifier, "hi"}, {token.Unknown, ";"},
		{token.Keyword, "puts"}, {token.StringLiteral, "'x'"}, {token.Keyword, "end"},
		{token.Comment, "# c"},
	}, simplify(res.Tokens))
	assert.NotEmpty(t, res.Error)

	assert.Error(t, e.RegisterLanguage("bad", json.RawMessage(`{"name":`)))
	assert.Error(t, e.RegisterLanguage(" ", json.RawMessage(`{}`)))
}

func TestRegisterLanguage_ShadowsBuiltin(t *testing.T) {
	e := MustNew()

	require.NoError(t, e.RegisterLanguage("js", json.RawMessage(`{"name":"MyJS","keywords":["x"]}`)))
	res := e.TokenizeResult("x", "js")
	assert.Equal(t, []tk{{token.Keyword, "x"}}, simplify(res.Tokens))

	e.Unregister("js")
	res = e.TokenizeResult("x", "js")
	assert.Equal(t, []tk{{token.Identifier, "x"}}, simplify(res.Tokens))
}

func TestEngine_ConcurrentUse(t *testing.T) {
	e := MustNew()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = e.RegisterLanguage("ruby", json.RawMessage(`{"name":"Ruby"}`))
		}()
		go func() {
			defer wg.Done()
			_ = e.TokenizeResult("a = 1", "ruby")
		}()
	}
	wg.Wait()
}

func TestBuiltinConfig(t *testing.T) {
	cfg, ok := BuiltinConfig("Python")
	require.True(t, ok)
	assert.True(t, json.Valid(cfg))

	_, ok = BuiltinConfig("cobol")
	assert.False(t, ok)
}

func TestPair_ShorthandAndObject(t *testing.T) {
	var pairs []Pair
	require.NoError(t, json.Unmarshal([]byte(`["'", {"start":"<<","end":">>"}, {"start":"|"}]`), &pairs))
	assert.Equal(t, []Pair{{"'", "'"}, {"<<", ">>"}, {"|", "|"}}, pairs)

	assert.Error(t, json.Unmarshal([]byte(`[{"end":"x"}]`), &pairs))
}
