//go:build !linux

package main

import (
	"fmt"
	"os"
)

// readInputEventsMulti is the portable fallback: one blocking reader
// goroutine per device. Fine for the two or three wheels a desk realistically
// has.
func readInputEventsMulti(files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	if len(files) == 0 {
		readErr <- fmt.Errorf("no input devices provided")
		return
	}
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}
