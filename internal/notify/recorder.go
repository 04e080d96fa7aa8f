package notify

import (
	"context"
	"fmt"
	"sync"

	"jobboard-bot/internal/models"
)

// Sent is one message accepted by a Recorder.
type Sent struct {
	RecipientID int64
	Message     Message
}

// Recorder is an in-memory Dispatcher. Recipients listed in Fail get a
// dispatch error instead.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail map[int64]bool
}

func NewRecorder() *Recorder {
	return &Recorder{Fail: make(map[int64]bool)}
}

func (r *Recorder) Send(ctx context.Context, recipientID int64, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDispatch, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail[recipientID] {
		return fmt.Errorf("%w: recipient %d unreachable", models.ErrDispatch, recipientID)
	}

	r.sent = append(r.sent, Sent{RecipientID: recipientID, Message: msg})
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Recorder) SentTo(recipientID int64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message
	for _, s := range r.sent {
		if s.RecipientID == recipientID {
			out = append(out, s.Message)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
