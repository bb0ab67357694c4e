package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// errInstanceRunning is returned by [acquirePID] when another daemon holds
// the lock.
var errInstanceRunning = errors.New("daemon already running")

// pidLock is a held PID file. The file stays open and locked for the
// lifetime of the daemon.
type pidLock struct {
	path  string
	token string
	f     *os.File
}

// pidToken generates a random 16-character hex token proving ownership of the
// PID file, so [pidLock.Release] only removes a file this instance wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// acquirePID locks the PID file in dp and writes "PID:TOKEN" into it. A file
// left behind by a dead process is reused; a live holder yields an error
// wrapping [errInstanceRunning] that names its pid when readable.
func acquirePID(dp DataPaths) (*pidLock, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		pid := readPID(f)
		f.Close()
		if pid > 0 {
			return nil, fmt.Errorf("%w (pid %d)", errInstanceRunning, pid)
		}
		return nil, fmt.Errorf("%w: %v", errInstanceRunning, err)
	}

	token := pidToken()
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(content), 0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return &pidLock{path: dp.PID(), token: token, f: f}, nil
}

// readPID returns the pid recorded in f, or 0.
func readPID(f *os.File) int {
	data, err := io.ReadAll(io.NewSectionReader(f, 0, 64))
	if err != nil {
		return 0
	}
	pid, _, _ := strings.Cut(string(data), ":")
	n, err := strconv.Atoi(pid)
	if err != nil {
		return 0
	}
	return n
}

// Release unlocks and closes the PID file and removes it if it still carries
// this instance's token.
func (p *pidLock) Release() {
	if p == nil {
		return
	}
	data := make([]byte, 64)
	n, _ := p.f.ReadAt(data, 0)
	_ = unlockFile(p.f)
	p.f.Close()

	_, token, ok := strings.Cut(string(data[:n]), ":")
	if ok && token == p.token {
		os.Remove(p.path)
	}
}
