package bridge

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/marlinspike/pkg/interlock"
)

// Console runs newline-terminated command lines read from In and
// writes the responses to Out, one line each.
type Console struct {
	In        io.Reader
	Out       io.Writer
	Processor Processor

	writeLock sync.Mutex
}

// NewConsole creates a Console.
func NewConsole(in io.Reader, out io.Writer, proc Processor) *Console {
	return &Console{In: in, Out: out, Processor: proc}
}

func (c *Console) writeLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	_, err := io.WriteString(c.Out, strings.Join(lines, "\n")+"\n")
	return err
}

// SendFault writes the fault descriptor frame.
func (c *Console) SendFault(f interlock.Fault) {
	if err := c.writeLines(f.Lines()); err != nil {
		glog.Warningf("console: write fault: %v", err)
	}
}

// scanLines splits on CR or LF.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Run implements Runnable. It returns when In reaches EOF.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.In)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines, err := c.Processor.Do(ctx, line)
		if err != nil {
			return err
		}
		if err = c.writeLines(lines); err != nil {
			return err
		}
	}
	return scanner.Err()
}
