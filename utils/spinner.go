package utils

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Spinner initializes the progress indicator.
type Spinner struct {
	mu         *sync.RWMutex
	wg         sync.WaitGroup
	delay      time.Duration
	writer     io.Writer
	message    string
	lastOutput string
	StopMsg    string
	hideCursor bool
	running    bool
	stopChan   chan struct{}
}

// NewSpinner instantiates a new progress indicator writing to stderr.
func NewSpinner(msg string, d time.Duration, hideCursor bool) *Spinner {
	return &Spinner{
		mu:         &sync.RWMutex{},
		delay:      d,
		writer:     os.Stderr,
		message:    msg,
		hideCursor: hideCursor,
	}
}

// SetWriter redirects the spinner output.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start starts the progress indicator.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	if s.hideCursor && runtime.GOOS != "windows" {
		// hides the cursor
		fmt.Fprint(s.writer, "\033[?25l")
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			for _, r := range `⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏` {
				select {
				case <-s.stopChan:
					return
				default:
					s.mu.Lock()
					output := fmt.Sprintf("\r%s%s %c%s", s.message, SuccessColor, r, DefaultColor)
					fmt.Fprint(s.writer, output)
					s.lastOutput = output
					s.mu.Unlock()

					time.Sleep(s.delay)
				}
			}
		}
	}()
}

// Stop stops the progress indicator and prints the stop message, if any.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	// Wait for the last frame to be written before clearing the line.
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	s.restoreCursor()
	if len(s.StopMsg) > 0 {
		fmt.Fprint(s.writer, s.StopMsg)
	}
}

// RestoreCursor restores back the cursor visibility.
func (s *Spinner) RestoreCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreCursor()
}

func (s *Spinner) restoreCursor() {
	if s.hideCursor && runtime.GOOS != "windows" {
		// makes the cursor visible
		fmt.Fprint(s.writer, "\033[?25h")
	}
}

// clear deletes the last line. Caller must hold the locker.
func (s *Spinner) clear() {
	n := utf8.RuneCountInString(s.lastOutput)
	if runtime.GOOS == "windows" {
		clearString := "\r" + strings.Repeat(" ", n) + "\r"
		fmt.Fprint(s.writer, clearString)
		s.lastOutput = ""
		return
	}
	for _, c := range []string{"\b", "\127", "\b", "\033[K"} { // "\033[K" for macOS Terminal
		fmt.Fprint(s.writer, strings.Repeat(c, n))
	}
	fmt.Fprint(s.writer, "\r\033[K") // clear line
	s.lastOutput = ""
}
