/*
 * memtestgo - Operator console.
 *
 * Copyright 2025, memtestgo Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package console is the interactive operator REPL: start/stop/status/mode
// /quit over a running engine.Engine, modeled on the teacher's
// command/reader + command/parser pair (a liner.Liner prompt feeding a
// hand-rolled command-line scanner with prefix matching and tab
// completion), trimmed from the teacher's device attach/detach/set/show
// vocabulary down to the handful of run-control verbs this module needs.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/peterh/liner"

	"memtestgo/engine"
	"memtestgo/engine/report"
)

// Handle bundles the engine and reporter the console commands operate on.
type Handle struct {
	Engine   *engine.Engine
	Reporter *report.Reporter

	cancel context.CancelFunc
}

// Run starts the liner-based prompt loop and blocks until the operator
// quits or aborts the prompt (Ctrl-D/Ctrl-C), mirroring the teacher's
// ConsoleReader.
func Run(h *Handle) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		return CompleteCmd(partial)
	})

	for {
		command, err := line.Prompt("memtestgo> ")
		if err == nil {
			line.AppendHistory(command)
			quit, perr := ProcessCommand(command, h)
			if perr != nil {
				fmt.Println("Error: " + perr.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("error reading line", "error", err)
	}
}
