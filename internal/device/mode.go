package device

// Mode is the operating mode of a Device.
type Mode string

const (
	ModeOff  Mode = "off"
	ModeHeat Mode = "heat"
)

// SupportedModes returns the modes a Device can report.
func SupportedModes() []Mode {
	return []Mode{ModeOff, ModeHeat}
}

func (m Mode) String() string {
	return string(m)
}
