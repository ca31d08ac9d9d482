package alert

// State is the engine's position in one evaluation cycle.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateSilent
	StateAlerting
)

func (s State) String() string {
	switch s {
	case StateEvaluating:
		return "evaluating"
	case StateSilent:
		return "silent"
	case StateAlerting:
		return "alerting"
	default:
		return "idle"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode selects how the engine reacts.
type Mode int

const (
	// ModeAmbient announces the closest obstacle, rate limited by a cooldown.
	ModeAmbient Mode = iota

	// ModeInteractive answers spoken questions about the scene.
	ModeInteractive
)

func (m Mode) String() string {
	if m == ModeInteractive {
		return "interactive"
	}
	return "ambient"
}

// MarshalText renders the mode name in JSON.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
