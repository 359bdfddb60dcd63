// Package logger wires the standard library logger to stdout plus a
// size-rotated log file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// rotatingFile is an io.Writer that rolls the log file over once it grows
// past maxSize bytes, keeping up to maxBackups numbered backups
// (sniper.log.1 is the newest backup).
type rotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// Setup routes log output to stdout and a rotating file. If the file
// cannot be opened the bot still runs with stdout-only logging.
func Setup(path string, maxSizeMB int64, maxBackups int) {
	r := &rotatingFile{
		path:       path,
		maxSize:    maxSizeMB * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := r.open(); err != nil {
		log.Printf("Failed to open log file %s, using stdout only: %v", path, err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, r))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.file = f
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			// Keep writing to the oversized file rather than drop logs.
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	// Shift sniper.log.1 -> .2 -> ... before moving the live file to .1.
	for i := r.maxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", r.path, i)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		os.Rename(src, fmt.Sprintf("%s.%d", r.path, i+1))
	}
	if r.maxBackups > 0 {
		os.Rename(r.path, r.path+".1")
	} else {
		os.Remove(r.path)
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = 0
	return nil
}
