package device

import (
	"log/slog"
)

// State is a snapshot of a Device. Temperatures are in degrees Celsius; nil means not observed yet.
type State struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Current *float64 `json:"current,omitempty"`
	Target  *float64 `json:"target,omitempty"`
	Mode    Mode     `json:"mode"`
}

func (s State) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 5)
	attrs = append(attrs, slog.Int("id", s.ID), slog.String("name", s.Name))
	if s.Current != nil {
		attrs = append(attrs, slog.Float64("current", *s.Current))
	}
	if s.Target != nil {
		attrs = append(attrs, slog.Float64("target", *s.Target))
	}
	attrs = append(attrs, slog.String("mode", s.Mode.String()))
	return slog.GroupValue(attrs...)
}
