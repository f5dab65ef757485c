package stream

import "github.com/google/uuid"

// Event is one notification addressed to a subject.
type Event struct {
	ID   string `json:"id"`
	Name string `json:"event"`
	Data any    `json:"data"`
}

func NewEvent(name string, data any) Event {
	return Event{ID: uuid.NewString(), Name: name, Data: data}
}
