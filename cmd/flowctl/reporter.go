package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/text"
)

// consoleReporter prints flow diagnostics for a human reader.
type consoleReporter struct {
	out io.Writer
}

func (r consoleReporter) Report(message string) {
	fmt.Fprintf(r.out, "%s %s\n", text.FgYellow.Sprint("»"), message)
}

func (r consoleReporter) Fail(message string) error {
	fmt.Fprintf(r.out, "%s %s\n", text.FgRed.Sprint("FAIL"), message)
	return errors.New(message)
}

func (r consoleReporter) Pass(message string) {
	fmt.Fprintf(r.out, "%s %s\n", text.FgGreen.Sprint("PASS"), message)
}
