package notifications

import "strings"

// Payload is one desktop notification.
type Payload struct {
	Title   string
	Content string
}

// Normalize trims both fields. ok is false when nothing is left to show.
func (p Payload) Normalize() (out Payload, ok bool) {
	out = Payload{
		Title:   strings.TrimSpace(p.Title),
		Content: strings.TrimSpace(p.Content),
	}

	return out, out.Title != "" || out.Content != ""
}

// Sender delivers notifications through a desktop backend.
type Sender interface {
	Send(payload Payload)
}

type SenderFunc func(Payload)

func (f SenderFunc) Send(payload Payload) {
	f(payload)
}

// Filtered drops payloads that are empty after Normalize and forwards the rest trimmed.
func Filtered(next Sender) Sender {
	return SenderFunc(func(p Payload) {
		if next == nil {
			return
		}
		if out, ok := p.Normalize(); ok {
			next.Send(out)
		}
	})
}
