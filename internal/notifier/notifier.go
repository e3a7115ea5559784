// Package notifier reports changes in the rooms' state: a new target temperature, or a room that the API no longer reports.
package notifier

type Level string

const (
	Info    Level = "good"
	Warning Level = "warning"
)

type Message struct {
	Level Level
	Title string
	Text  string
}

type Notifier interface {
	Notify(Message)
}

type Notifiers []Notifier

func (n Notifiers) Notify(msg Message) {
	for _, l := range n {
		l.Notify(msg)
	}
}
