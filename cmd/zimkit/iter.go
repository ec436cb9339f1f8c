package main

import (
	"fmt"

	"github.com/zimkit/zimkit/internal/zim"
)

func runIter(args []string) error {
	fs, opts := newFlagSet("zimkit ls")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: zimkit ls [flags] <file>")
	}

	a, err := opts.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	return a.IterEntries(func(e *zim.Entry) error {
		kind := "content"
		if e.IsRedirect() {
			kind = "redirect"
		}
		fmt.Printf("%-8s %s\n", kind, e.FullURL())
		return nil
	})
}
