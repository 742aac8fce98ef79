package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errQuit = errors.New("quit")

type lineHandler func(ctx context.Context, verb, rest string) error

// lineReader outlives a single prompt loop so a command can reopen the
// prompt without losing buffered input.
type lineReader struct {
	scanner    *bufio.Scanner
	showPrompt bool
	eof        bool
}

func newLineReader(in io.Reader) *lineReader {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	return &lineReader{scanner: scanner, showPrompt: interactive(in)}
}

// runPrompt reads commands until EOF or quit. Handler errors are printed
// and do not end the loop.
func runPrompt(ctx context.Context, lines *lineReader, out io.Writer, prompt func() string, handle lineHandler) error {
	scanner := lines.scanner
	for {
		if lines.eof {
			return nil
		}
		if lines.showPrompt {
			fmt.Fprint(out, prompt())
		}
		if !scanner.Scan() {
			lines.eof = true
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		err := handle(ctx, strings.ToLower(verb), strings.TrimSpace(rest))
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// fields splits on ";" so values may contain spaces.
func fields(rest string) []string {
	var out []string
	for _, f := range strings.Split(rest, ";") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
