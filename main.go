/*
 * memtestgo - Main process.
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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"memtestgo/console"
	"memtestgo/engine"
	"memtestgo/engine/pattern"
	"memtestgo/engine/report"
	"memtestgo/engine/window"
	"memtestgo/util/logger"

	runconfig "memtestgo/config/runconfig"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Run configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optMemoryMiB := getopt.IntLong("memory", 'm', 256, "Simulated RAM size in MiB")
	optCPUs := getopt.IntLong("cpus", 'n', runtime.NumCPU(), "Number of worker goroutines")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			slog.Error("can't create log file", "path", *optLogFile, "error", err)
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	debug := false
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, &debug))
	slog.SetDefault(Logger)

	Logger.Info("memtestgo started", "cpus", *optCPUs, "memory_mib", *optMemoryMiB)

	numWorkers := *optCPUs
	if numWorkers < 1 {
		numWorkers = 1
	}

	runCfg := runconfig.Default(numWorkers)
	if *optConfig != "" {
		loaded, err := runconfig.Load(*optConfig, numWorkers)
		if err != nil {
			Logger.Error("failed to load run configuration", "path", *optConfig, "error", err)
			os.Exit(1)
		}
		runCfg = loaded
	}

	memPages := uintptr(*optMemoryMiB) * (1024 * 1024 / window.PageSize)
	mapper := window.NewSimMapper(memPages)
	reporter := report.NewReporter(runCfg.ErrorMode, len(pattern.Catalog), os.Stdout)

	e := engine.New(mapper, reporter, runCfg.EngineConfig())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		Logger.Info("got shutdown signal, stopping engine")
		e.Stop()
		os.Exit(0)
	}()

	console.Run(&console.Handle{Engine: e, Reporter: reporter})

	Logger.Info("shutting down")
	e.Stop()
}
