package excerpt

import (
	"sort"
	"strings"
)

// MinimapFn reports the markdown header path covering a character
// position in the document it was built from.
type MinimapFn func(pos int) string

// NewMinimap scans markdown content and returns a function mapping any
// character position to the stack of headers above it. Headers inside
// fenced code blocks are ignored.
func NewMinimap(content string) MinimapFn {
	type stackState map[int]string

	minimap := map[int]stackState{}
	current := stackState{}
	inCodeBlock := false
	pos := 0

	for _, line := range strings.Split(content, "\n") {
		lineStart := pos
		pos += len(line) + 1

		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
		}
		if inCodeBlock {
			continue
		}

		level := headerLevel(line)
		if level == 0 {
			continue
		}

		next := stackState{}
		for l, h := range current {
			if l < level {
				next[l] = h
			}
		}
		next[level] = line
		current = next
		minimap[lineStart] = current
	}

	offsets := make([]int, 0, len(minimap))
	for off := range minimap {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	return func(n int) string {
		if n < 0 {
			n = 0
		}
		// Closest header at or before the position.
		idx := sort.SearchInts(offsets, n+1) - 1
		if idx < 0 {
			return ""
		}
		stack := minimap[offsets[idx]]

		var lines []string
		for level := 1; level <= 6; level++ {
			if h, ok := stack[level]; ok {
				lines = append(lines, h)
			}
		}
		return strings.Join(lines, "\n")
	}
}

func headerLevel(line string) int {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0
	}
	return level
}
