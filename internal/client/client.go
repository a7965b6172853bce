// Package client consumes the server's progress stream.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-contrib/sse"
)

// Stream event names.
const (
	EventProgress = "upload-progress"
	EventComplete = "upload-complete"
	EventError    = "error"
)

var (
	// ErrNotFound is returned when the server does not know the todo.
	ErrNotFound = errors.New("todo not found")
	// ErrIncomplete is returned when the stream ends without a terminal frame.
	ErrIncomplete = errors.New("progress stream ended before completion")
)

// StatusError reports a non-200 response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Frame is one decoded progress frame.
type Frame struct {
	Event     string
	ID        int
	SubjectID string
	Progress  int
	Error     string
}

// Terminal reports whether no frames follow this one.
func (f Frame) Terminal() bool {
	return f.Event == EventComplete || f.Event == EventError
}

// Client reads progress streams from a todo server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL. A nil httpClient means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Stream opens the progress stream of todoID and calls fn for each frame as
// it arrives. It returns nil after a terminal frame, fn's error if fn fails,
// and ErrIncomplete if the server closes the stream early.
func (c *Client) Stream(ctx context.Context, todoID string, fn func(Frame) error) error {
	endpoint := c.baseURL + "/todos/" + url.PathEscape(todoID) + "/progress"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	br := bufio.NewReader(resp.Body)
	for {
		chunk, err := readEvent(br)
		if len(chunk) > 0 {
			frames, decErr := decode(chunk)
			if decErr != nil {
				return decErr
			}
			for _, f := range frames {
				if err := fn(f); err != nil {
					return err
				}
				if f.Terminal() {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return ErrIncomplete
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// Collect streams todoID to the end and returns every frame.
func (c *Client) Collect(ctx context.Context, todoID string) ([]Frame, error) {
	var frames []Frame
	err := c.Stream(ctx, todoID, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	return frames, err
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
	}
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}

// readEvent returns the bytes of one blank-line terminated event.
func readEvent(br *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := br.ReadBytes('\n')
		buf.Write(line)
		if err != nil {
			return buf.Bytes(), err
		}
		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			return buf.Bytes(), nil
		}
	}
}

func decode(chunk []byte) ([]Frame, error) {
	events, err := sse.Decode(bytes.NewReader(chunk))
	if err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	frames := make([]Frame, 0, len(events))
	for _, ev := range events {
		f, err := toFrame(ev)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func toFrame(ev sse.Event) (Frame, error) {
	f := Frame{Event: ev.Event}
	if ev.Id != "" {
		id, err := strconv.Atoi(ev.Id)
		if err != nil {
			return Frame{}, fmt.Errorf("frame id %q: %w", ev.Id, err)
		}
		f.ID = id
	}
	var data struct {
		ID       string `json:"id"`
		Progress int    `json:"progress"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprint(ev.Data)), &data); err != nil {
		return Frame{}, fmt.Errorf("frame %d data: %w", f.ID, err)
	}
	f.SubjectID, f.Progress, f.Error = data.ID, data.Progress, data.Error
	return f, nil
}
