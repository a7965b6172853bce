package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/JakeFAU/todo-progress/internal/progress"
)

// Event types carried in the frame "event" field.
const (
	EventProgress = "upload-progress"
	EventComplete = "upload-complete"
	EventError    = "error"
)

// faultMessage is the client-facing text of an error frame. Internal error
// details stay in the server log.
const faultMessage = "Streaming error occurred"

// Frame is one server-sent-events message.
type Frame struct {
	Event string
	ID    int
	Data  any
}

// ProgressPayload is the data of upload-progress and upload-complete frames.
type ProgressPayload struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
}

// ErrorPayload is the data of error frames.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ProgressFrame builds the frame for a progress event using frame id id.
func ProgressFrame(evt progress.Event, id int) Frame {
	name := EventProgress
	if evt.Terminal() {
		name = EventComplete
	}
	return Frame{
		Event: name,
		ID:    id,
		Data:  ProgressPayload{ID: evt.SubjectID, Progress: evt.Progress},
	}
}

// ErrorFrame builds an error frame carrying msg.
func ErrorFrame(id int, msg string) Frame {
	return Frame{Event: EventError, ID: id, Data: ErrorPayload{Error: msg}}
}

// Encode renders the frame as
//
//	event: <type>
//	id: <n>
//	data: <json>
//	<blank line>
func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame data: %w", f.Event, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(f.Event) + len(data) + 32)
	buf.WriteString("event: ")
	buf.WriteString(f.Event)
	buf.WriteString("\nid: ")
	buf.WriteString(strconv.Itoa(f.ID))
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}
