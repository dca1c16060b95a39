// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// =============================================================================
// RECOGNIZER CONTRACT
// =============================================================================

// Result is the single outcome of a listener.
type Result struct {
	Transcript string
	Err        error
}

// Listener is a running single-shot recognition.
type Listener interface {
	// Stop asks the listener to finish. The result is still delivered.
	Stop()
}

// Recognizer starts speech-to-text listeners.
//
// Start must call onResult exactly once for every listener it returns,
// from any goroutine, after which the listener has terminated. Cancelling
// ctx aborts the listener.
type Recognizer interface {
	Start(ctx context.Context, locale string, onResult func(Result)) (Listener, error)
}

// =============================================================================
// COMMAND RECOGNIZER
// =============================================================================

// LocalePlaceholder is replaced by the locale in command arguments.
const LocalePlaceholder = "{locale}"

// CommandRecognizer runs an external program that records from the
// microphone until interrupted and prints the transcript on stdout.
type CommandRecognizer struct {
	// Command is the program and its arguments.
	Command []string
}

// NewCommandRecognizer creates a recognizer for argv.
func NewCommandRecognizer(argv []string) *CommandRecognizer {
	return &CommandRecognizer{Command: argv}
}

// Start launches the command.
func (r *CommandRecognizer) Start(ctx context.Context, locale string, onResult func(Result)) (Listener, error) {
	if len(r.Command) == 0 || r.Command[0] == "" {
		return nil, ErrUnsupported
	}
	path, err := exec.LookPath(r.Command[0])
	if err != nil {
		return nil, errors.Join(ErrUnsupported, err)
	}

	args := make([]string, 0, len(r.Command)-1)
	for _, a := range r.Command[1:] {
		args = append(args, strings.ReplaceAll(a, LocalePlaceholder, locale))
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	l := &commandListener{cmd: cmd}
	go func() {
		waitErr := cmd.Wait()
		onResult(l.result(ctx, waitErr, stdout.String(), stderr.String()))
	}()
	return l, nil
}

type commandListener struct {
	cmd *exec.Cmd

	mu   sync.Mutex
	stop bool
}

func (l *commandListener) Stop() {
	l.mu.Lock()
	if l.stop {
		l.mu.Unlock()
		return
	}
	l.stop = true
	l.mu.Unlock()

	if err := l.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = l.cmd.Process.Kill()
	}
}

func (l *commandListener) stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop
}

// result maps the process outcome. Recorders commonly exit non-zero when
// interrupted, so after Stop whatever was printed is the transcript.
func (l *commandListener) result(ctx context.Context, waitErr error, stdout, stderr string) Result {
	switch {
	case ctx.Err() != nil:
		return Result{Err: ctx.Err()}
	case waitErr == nil, l.stopped():
		return Result{Transcript: stdout}
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return Result{Err: errors.New(msg)}
	}
	return Result{Err: waitErr}
}
