package chat

import (
	"bufio"
	"regexp"
	"strings"
)

var codeBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_-]+)?\\n(.*?)```")

// Extractor pulls runnable shell commands out of an assistant answer so the
// UI can offer them for copy or prefill.
type Extractor struct {
	re *regexp.Regexp
}

// NewExtractor compiles the optional user-supplied pattern. An empty pattern
// selects the heuristic extraction; an invalid one is an error.
func NewExtractor(pattern string) (*Extractor, error) {
	if pattern == "" {
		return &Extractor{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Extractor{re: re}, nil
}

// Commands returns the commands found in answer, deduplicated and in order
// of first appearance.
func (e *Extractor) Commands(answer string) []string {
	if e.re != nil {
		return e.regexCommands(answer)
	}

	commands := []string{}
	seen := map[string]struct{}{}

	add := func(cmd string) {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			return
		}
		if _, ok := seen[cmd]; ok {
			return
		}
		seen[cmd] = struct{}{}
		commands = append(commands, cmd)
	}

	for _, block := range codeBlocks(answer) {
		isShell := isShellLang(block.lang)
		scanner := bufio.NewScanner(strings.NewReader(block.content))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "$ ") {
				add(strings.TrimPrefix(line, "$ "))
				continue
			}
			if strings.HasPrefix(line, "> ") {
				add(strings.TrimPrefix(line, "> "))
				continue
			}
			if isShell {
				add(line)
			}
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(answer))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "$ ") {
			add(strings.TrimPrefix(line, "$ "))
		}
		if strings.HasPrefix(line, "> ") {
			add(strings.TrimPrefix(line, "> "))
		}
	}

	return commands
}

func (e *Extractor) regexCommands(answer string) []string {
	matches := e.re.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}

	commands := []string{}
	seen := map[string]struct{}{}
	for _, match := range matches {
		cmd := match[0]
		if len(match) > 1 {
			cmd = match[1]
		}
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		if _, ok := seen[cmd]; ok {
			continue
		}
		seen[cmd] = struct{}{}
		commands = append(commands, cmd)
	}
	return commands
}

type codeBlock struct {
	lang    string
	content string
}

func codeBlocks(answer string) []codeBlock {
	matches := codeBlockRe.FindAllStringSubmatch(answer, -1)
	blocks := []codeBlock{}
	for _, match := range matches {
		content := strings.TrimSpace(match[2])
		if content == "" {
			continue
		}
		blocks = append(blocks, codeBlock{
			lang:    strings.ToLower(strings.TrimSpace(match[1])),
			content: content,
		})
	}
	return blocks
}

func isShellLang(lang string) bool {
	switch lang {
	case "sh", "bash", "zsh", "shell":
		return true
	default:
		return false
	}
}
