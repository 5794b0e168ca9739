// Package classify derives the operational state of a machine from its lamp
// tower (red/yellow/green) readings and motor current.
package classify

// State is an operational state of the machine.
type State string

const (
	Stopped          State = "stopped"
	AutoProcessing   State = "auto_processing"
	ManualProcessing State = "manual_processing"
	ProcessComplete  State = "process_complete"
	Alarm            State = "alarm"
)

// States lists every operational state in report order.
var States = []State{AutoProcessing, ManualProcessing, ProcessComplete, Alarm, Stopped}

// Color is the display color bound to a State.
type Color string

const (
	Gray   Color = "gray"
	Green  Color = "green"
	Blue   Color = "blue"
	Yellow Color = "yellow"
	Red    Color = "red"
)

var stateColors = map[State]Color{
	Stopped:          Gray,
	AutoProcessing:   Green,
	ManualProcessing: Blue,
	ProcessComplete:  Yellow,
	Alarm:            Red,
}

// Color returns the display color of the state.
func (s State) Color() Color {
	if c, ok := stateColors[s]; ok {
		return c
	}
	return Gray
}

// Default thresholds.
const (
	DefaultLightThreshold   = 200.0
	DefaultCurrentThreshold = 3.0
)

// Thresholds decide when a lamp counts as lit and when the machine counts as
// drawing current. A value equal to its threshold is on.
type Thresholds struct {
	Red     float64
	Yellow  float64
	Green   float64
	Current float64
}

// DefaultThresholds returns 200 for every lamp and 3.0 A for the motor.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Red:     DefaultLightThreshold,
		Yellow:  DefaultLightThreshold,
		Green:   DefaultLightThreshold,
		Current: DefaultCurrentThreshold,
	}
}

// Lights is the on/off status of each lamp.
type Lights struct {
	Red    bool `json:"red"`
	Yellow bool `json:"yellow"`
	Green  bool `json:"green"`
}

// Result is the outcome of classifying one sample.
type Result struct {
	Lights Lights `json:"lights"`
	Active bool   `json:"active"`
	State  State  `json:"state"`
	Color  Color  `json:"color"`
}

const (
	onGreen = 1 << iota
	onYellow
	onRed
	motor
)

// table maps the packed (motor, red, yellow, green) mask to a state. All 16
// combinations are listed, motor idle first. Green wins whenever it is lit,
// and a drawing motor without green is manual work regardless of red or
// yellow.
var table = [16]State{
	0:                                  Stopped,
	onGreen:                            AutoProcessing,
	onYellow:                           ProcessComplete,
	onYellow | onGreen:                 AutoProcessing,
	onRed:                              Alarm,
	onRed | onGreen:                    AutoProcessing,
	onRed | onYellow:                   ProcessComplete,
	onRed | onYellow | onGreen:         AutoProcessing,
	motor:                              ManualProcessing,
	motor | onGreen:                    AutoProcessing,
	motor | onYellow:                   ManualProcessing,
	motor | onYellow | onGreen:         AutoProcessing,
	motor | onRed:                      ManualProcessing,
	motor | onRed | onGreen:            AutoProcessing,
	motor | onRed | onYellow:           ManualProcessing,
	motor | onRed | onYellow | onGreen: AutoProcessing,
}

// Classify maps one sample to its lamp status, machine activity and state.
func (t Thresholds) Classify(red, yellow, green, current float64) Result {
	lights := Lights{
		Red:    red >= t.Red,
		Yellow: yellow >= t.Yellow,
		Green:  green >= t.Green,
	}
	active := current >= t.Current

	state := table[mask(lights, active)]
	return Result{
		Lights: lights,
		Active: active,
		State:  state,
		Color:  state.Color(),
	}
}

func mask(l Lights, active bool) int {
	m := 0
	if l.Green {
		m |= onGreen
	}
	if l.Yellow {
		m |= onYellow
	}
	if l.Red {
		m |= onRed
	}
	if active {
		m |= motor
	}
	return m
}
