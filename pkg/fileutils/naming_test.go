package fileutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookFilename(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "42 - Dune.pdf", BookFilename("42", "Dune", ".pdf"))
	assert.Equal(t, "42 - What If.epub", BookFilename("42", "What If?", ".epub"))
	assert.Equal(t, "42 - He said hi 'ok'.pdf", BookFilename("42", "He said “hi” ‘ok’", ".pdf"))
	assert.Equal(t, "abc.pdf", BookFilename("abc", "  ...  ", ".pdf"))
}

func TestTitleFromFilename(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Dune.pdf", "Dune"},
		{"underscores", "the_left_hand_of_darkness.epub", "the left hand of darkness"},
		{"with directory", "/sdcard/Download/My Book.pdf", "My Book"},
		{"extension only", ".pdf", "Untitled"},
		{"empty", "", "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleFromFilename(tt.input))
		})
	}
}
