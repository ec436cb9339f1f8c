package main

import "fmt"

func runInfo(args []string) error {
	fs, opts := newFlagSet("zimkit info")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: zimkit info [flags] <file>")
	}

	a, err := opts.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.Header()
	fmt.Printf("uuid:            %x\n", h.UUID)
	fmt.Printf("major/minor:     %d.%d\n", h.MajorVersion, h.MinorVersion)
	fmt.Printf("entry count:     %d\n", h.EntryCount)
	fmt.Printf("cluster count:   %d\n", h.ClusterCount)
	fmt.Printf("has main page:   %v\n", h.HasMainPage())
	fmt.Printf("has layout page: %v\n", h.HasLayoutPage())

	for _, key := range []string{"Title", "Description", "Language", "Creator", "Publisher", "Date", "Counter"} {
		if body, err := a.Metadata(key); err == nil {
			fmt.Printf("metadata[%s]: %s\n", key, body)
		}
	}
	return nil
}
