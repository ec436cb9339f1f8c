package main

import (
	"fmt"

	"github.com/zimkit/zimkit/internal/zim"
)

func runVerify(args []string) error {
	fs, opts := newFlagSet("zimkit verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: zimkit verify [flags] <file>")
	}

	a, err := opts.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.VerifyChecksum(); err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	fmt.Println("checksum: ok")

	count := 0
	if err := a.IterEntries(func(_ *zim.Entry) error {
		count++
		return nil
	}); err != nil {
		return fmt.Errorf("structural scan: %w", err)
	}
	fmt.Printf("structural scan: ok (%d entries)\n", count)
	return nil
}
