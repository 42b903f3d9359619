package main

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/nf/piglet/piglet"
)

// debounce is how long watch waits for writes to a file to settle.
const debounce = 100 * time.Millisecond

// swapper is implemented by *piglet.Runner.
type swapper interface {
	Swap(rom []byte)
}

var _ swapper = (*piglet.Runner)(nil)

// watch reloads romFile into r whenever it changes, until ctx is done.
func watch(ctx context.Context, romFile string, r swapper) error {
	romFile = filepath.Clean(romFile)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(romFile)); err != nil {
		return err
	}
	log.Printf("watch: watching %s", romFile)

	var reload <-chan time.Time
	for {
		select {
		case <-reload:
			reload = nil
			rom, err := readROM(romFile)
			if err != nil {
				log.Printf("watch: %v", err)
				break
			}
			log.Printf("watch: reload %s", filepath.Base(romFile))
			r.Swap(rom)
		case ev := <-watcher.Event:
			if filepath.Clean(ev.Name) == romFile && !ev.IsAttrib() && !ev.IsDelete() {
				reload = time.After(debounce)
			}
		case err := <-watcher.Error:
			log.Printf("watch: watcher: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}
