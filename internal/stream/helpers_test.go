package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/todo-progress/internal/progress"
)

type parsedFrame struct {
	Event    string
	ID       int
	Subject  string
	Progress int
	Error    string
}

func parseFrame(t *testing.T, raw string) parsedFrame {
	t.Helper()
	require.True(t, strings.HasSuffix(raw, "\n\n"), "frame must end with a blank line: %q", raw)
	lines := strings.Split(strings.TrimSuffix(raw, "\n\n"), "\n")
	require.Len(t, lines, 3, "frame: %q", raw)
	require.True(t, strings.HasPrefix(lines[0], "event: "))
	require.True(t, strings.HasPrefix(lines[1], "id: "))
	require.True(t, strings.HasPrefix(lines[2], "data: "))

	id, err := strconv.Atoi(strings.TrimPrefix(lines[1], "id: "))
	require.NoError(t, err)
	var data struct {
		ID       string `json:"id"`
		Progress int    `json:"progress"`
		Error    string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &data))
	return parsedFrame{
		Event:    strings.TrimPrefix(lines[0], "event: "),
		ID:       id,
		Subject:  data.ID,
		Progress: data.Progress,
		Error:    data.Error,
	}
}

// readFrame reads one blank-line terminated frame from an event stream.
func readFrame(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		sb.WriteString(line)
		if err != nil {
			if err == io.EOF && sb.Len() == 0 {
				return "", io.EOF
			}
			return sb.String(), err
		}
		if line == "\n" {
			return sb.String(), nil
		}
	}
}

func constantSteps(n int) progress.StepSource {
	return progress.StepFunc(func() int { return n })
}

// fakeConn records frames and can fail selected writes.
type fakeConn struct {
	mu      sync.Mutex
	frames  []string
	writes  int
	failAt  int // zero-based write index that starts failing; -1 never
	failErr error
	onWrite func(n int)
	closes  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{failAt: -1}
}

func (c *fakeConn) WriteFrame(frame []byte) error {
	c.mu.Lock()
	idx := c.writes
	c.writes++
	if c.failAt >= 0 && idx >= c.failAt {
		c.mu.Unlock()
		return c.failErr
	}
	c.frames = append(c.frames, string(frame))
	n := len(c.frames)
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) parsed(t *testing.T) []parsedFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]parsedFrame, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, parseFrame(t, f))
	}
	return out
}
