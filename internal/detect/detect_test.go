package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguage(t *testing.T) {
	tests := []struct {
		file    string
		content string
		wantID  string
	}{
		{file: "main.c", wantID: "c"},
		{file: "widget.cpp", wantID: "cpp"},
		{file: "Main.java", wantID: "java"},
		{file: "script.py", wantID: "python"},
		{file: "app.js", wantID: "js"},
		{file: "Rakefile.rb", wantID: "ruby"},
		{file: "main.go", content: "package main\n", wantID: "go"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, ok := Language(tt.file, []byte(tt.content))
			assert.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestLanguage_CanonicalDisplayName(t *testing.T) {
	got, ok := Language("x.cc", nil)
	assert.True(t, ok)
	assert.Equal(t, "cpp", got.ID)
	assert.Equal(t, "C++", got.DisplayName)
}

func TestLanguage_Unknown(t *testing.T) {
	_, ok := Language("blob.zzzz", nil)
	assert.False(t, ok)
}
