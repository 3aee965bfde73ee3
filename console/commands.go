package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"memtestgo/engine/fault"
)

type cmd struct {
	name     string // Command name.
	min      int    // Minimum prefix length that matches this command.
	process  func(*cmdLine, *Handle) (bool, error)
	complete func(*cmdLine) []string
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "start", min: 3, process: startCmd},
	{name: "stop", min: 3, process: stopCmd},
	{name: "status", min: 2, process: statusCmd},
	{name: "mode", min: 2, process: modeCmd, complete: modeComplete},
	{name: "quit", min: 1, process: quitCmd},
}

// ProcessCommand executes one line of operator input.
func ProcessCommand(commandLine string, h *Handle) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + name)
	}
	return match[0].process(&line, h)
}

// CompleteCmd returns the tab-completion candidates for a partial line,
// mirroring the teacher's CompleteCmd: once a unique command has matched
// and the cursor is past it, completion delegates to that command's own
// completer (if any); otherwise it lists matching command names.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	if !line.isEOL() && line.line[line.pos] == ' ' {
		line.skipSpace()
		match := matchList(name)
		if len(match) != 1 || match[0].complete == nil {
			return nil
		}
		return match[0].complete(&line)
	}

	match := matchList(name)
	names := make([]string, len(match))
	for i, m := range match {
		names[i] = m.name
	}
	return names
}

// matchCommand reports whether command is a prefix of match.name at least
// match.min characters long. It does not check whether the prefix also
// matches another command.
func matchCommand(match cmd, command string) bool {
	if len(command) > len(match.name) {
		return false
	}
	for i := range command {
		if match.name[i] != command[i] {
			return false
		}
	}
	return len(command) >= match.min
}

func matchList(command string) []cmd {
	if command == "" {
		return nil
	}
	var match []cmd
	for _, c := range cmdList {
		if matchCommand(c, command) {
			match = append(match, c)
		}
	}
	return match
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line) || l.line[l.pos] == '#'
}

func (l *cmdLine) getNext() byte {
	l.pos++
	if l.isEOL() {
		return 0
	}
	return l.line[l.pos]
}

// getWord scans the next run of letters, stopping at whitespace, '#' or
// end of line, and lower-cases it for case-insensitive command matching.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	if l.isEOL() {
		return ""
	}
	start := l.pos
	by := l.line[l.pos]
	for unicode.IsLetter(rune(by)) {
		by = l.getNext()
		if l.isEOL() || unicode.IsSpace(rune(by)) {
			break
		}
	}
	return strings.ToLower(l.line[start:l.pos])
}

func startCmd(_ *cmdLine, h *Handle) (bool, error) {
	if h.Engine.Counters().Running {
		return false, errors.New("engine is already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		if err := h.Engine.Start(ctx); err != nil {
			fmt.Println("engine stopped:", err)
		}
	}()
	fmt.Println("engine started")
	return false, nil
}

func stopCmd(_ *cmdLine, h *Handle) (bool, error) {
	if !h.Engine.Counters().Running {
		return false, errors.New("engine is not running")
	}
	h.Engine.Stop()
	if h.cancel != nil {
		h.cancel()
	}
	fmt.Println("engine stopped")
	return false, nil
}

func statusCmd(_ *cmdLine, h *Handle) (bool, error) {
	c := h.Engine.Counters()
	fmt.Printf("running=%v pass=%d test=%d errors=%d cecc=%d\n",
		c.Running, c.PassNum, c.TestNum, h.Reporter.ErrorCount(), h.Reporter.ErrorCountCECC())
	return false, nil
}

var modeNames = map[string]fault.DisplayMode{
	"none":    fault.DisplayNone,
	"summary": fault.DisplaySummary,
	"address": fault.DisplayAddress,
	"badram":  fault.DisplayBadRAM,
	"memmap":  fault.DisplayMemMap,
	"pages":   fault.DisplayPages,
}

func modeCmd(line *cmdLine, h *Handle) (bool, error) {
	name := line.getWord()
	if name == "" {
		return false, errors.New("mode requires a display mode argument")
	}
	m, ok := modeNames[name]
	if !ok {
		return false, fmt.Errorf("unknown display mode %q", name)
	}
	h.Reporter.SetMode(m)
	return false, nil
}

func modeComplete(line *cmdLine) []string {
	line.skipSpace()
	var out []string
	for name := range modeNames {
		out = append(out, name)
	}
	return out
}

func quitCmd(_ *cmdLine, _ *Handle) (bool, error) {
	return true, nil
}
