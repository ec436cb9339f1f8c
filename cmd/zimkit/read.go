package main

import (
	"fmt"
	"io"
	"os"
)

func runRead(args []string) error {
	fs, opts := newFlagSet("zimkit read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: zimkit read [flags] <file> <namespace/url>")
	}

	a, err := opts.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := a.GetEntryByFullURL(fs.Arg(1))
	if err != nil {
		return err
	}
	e, err = e.Resolve()
	if err != nil {
		return err
	}

	rd, err := e.Open()
	if err != nil {
		return err
	}
	defer rd.Close()
	_, err = io.Copy(os.Stdout, rd)
	return err
}
