// Package notify delivers notification messages to users.
package notify

import "context"

// Button is an inline button attached to a message. Data is the callback
// payload in "action:argument" form.
type Button struct {
	Text string
	Data string
}

type Message struct {
	Text    string
	Buttons []Button
}

// Dispatcher sends one message to one recipient. Implementations return an
// error wrapping models.ErrDispatch when delivery fails.
type Dispatcher interface {
	Send(ctx context.Context, recipientID int64, msg Message) error
}
