package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitIntoBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "single line no newline",
			input: "line1",
			want:  [][]string{{"line1"}},
		},
		{
			name:  "two blocks separated by blank line",
			input: "block1line1\nblock1line2\n\nblock2line1",
			want:  [][]string{{"block1line1", "block1line2"}, {"block2line1"}},
		},
		{
			name:  "trailing blank line",
			input: "line1\nline2\n\n",
			want:  [][]string{{"line1", "line2"}},
		},
		{
			name:  "leading blank line",
			input: "\nline1\nline2",
			want:  [][]string{{"line1", "line2"}},
		},
		{
			name:  "multiple consecutive blank lines",
			input: "block1\n\n\n\nblock2",
			want:  [][]string{{"block1"}, {"block2"}},
		},
		{
			name:  "only blank lines",
			input: "\n\n\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitIntoBlocks(tt.input))
		})
	}
}

func TestParseWorktreesFromPorcelain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Worktree
	}{
		{
			name:  "empty",
			input: "",
			want:  []Worktree{},
		},
		{
			name: "main and linked worktree",
			input: "worktree /src/app\nHEAD 1111111111111111111111111111111111111111\nbranch refs/heads/main\n\n" +
				"worktree /src/app-feature\nHEAD 2222222222222222222222222222222222222222\nbranch refs/heads/feature/login\n",
			want: []Worktree{
				{AbsolutePath: "/src/app", Branch: "main", HeadSHA: "1111111111111111111111111111111111111111"},
				{AbsolutePath: "/src/app-feature", Branch: "feature/login", HeadSHA: "2222222222222222222222222222222222222222"},
			},
		},
		{
			name:  "detached head",
			input: "worktree /src/app-detached\nHEAD 3333333333333333333333333333333333333333\ndetached\n",
			want: []Worktree{
				{AbsolutePath: "/src/app-detached", HeadSHA: "3333333333333333333333333333333333333333", Detached: true},
			},
		},
		{
			name:  "bare repository",
			input: "worktree /src/app.git\nbare\n",
			want:  []Worktree{{AbsolutePath: "/src/app.git", Bare: true}},
		},
		{
			name:  "locked and prunable annotations are ignored",
			input: "worktree /src/app-old\nHEAD 4444444444444444444444444444444444444444\nbranch refs/heads/old\nlocked reason here\nprunable gitdir file points to non-existent location\n",
			want: []Worktree{
				{AbsolutePath: "/src/app-old", Branch: "old", HeadSHA: "4444444444444444444444444444444444444444"},
			},
		},
		{
			name:  "block without worktree line is dropped",
			input: "HEAD 5555555555555555555555555555555555555555\n",
			want:  []Worktree{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseWorktreesFromPorcelain(tt.input))
		})
	}
}

func TestWorktree_HasBranch(t *testing.T) {
	assert.True(t, Worktree{Branch: "main"}.HasBranch())
	assert.False(t, Worktree{Branch: "main", Detached: true}.HasBranch())
	assert.False(t, Worktree{Bare: true}.HasBranch())
	assert.False(t, Worktree{}.HasBranch())
}
