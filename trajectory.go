package soar

import (
	"fmt"
	"time"

	"github.com/BlastBlastBlast/soar-sub000/metrics"
	"github.com/ChristopherRabotin/ode"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// FlightPhase defines an enum of flight phases, in the order they happen.
type FlightPhase uint8

const (
	// OnRail is the guided phase on the launch rail.
	OnRail FlightPhase = iota + 1
	// Powered is the free flight with the motor burning.
	Powered
	// Coast is the unpowered ascent up to apogee.
	Coast
	// Parachute is the descent under canopy.
	Parachute
	// Landed is the terminal phase.
	Landed
)

func (p FlightPhase) String() string {
	switch p {
	case OnRail:
		return "on rail"
	case Powered:
		return "powered"
	case Coast:
		return "coast"
	case Parachute:
		return "parachute"
	case Landed:
		return "landed"
	}
	panic("cannot stringify unknown flight phase")
}

// FlightState is the state of the rocket during the integration.
type FlightState struct {
	Position Vector3
	Velocity Vector3
	Elapsed  float64 // s since ignition
	Phase    FlightPhase
}

// TrajectorySample is a single point of the simulated trajectory.
type TrajectorySample struct {
	Time     float64 // s since ignition
	Position Vector3
	Speed    float64 // m/s
	Phase    FlightPhase
}

// Simulation integrates a single flight. It implements ode.Integrable and is not restartable.
type Simulation struct {
	config    RocketConfig
	atmo      Atmosphere
	origin    Vector3
	direction Vector3
	state     FlightState
	samples   []TrajectorySample
	steps     int
	err       error
	aborted   bool
	ran       bool
	logger    kitlog.Logger
}

// NewSimulation returns a new simulation from origin. A nil logger disables logging.
func NewSimulation(origin Vector3, config RocketConfig, atmo Atmosphere, logger kitlog.Logger) (*Simulation, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if atmo == nil {
		return nil, fmt.Errorf("%w: no atmosphere", ErrInvalidConfig)
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	s := &Simulation{
		config:    config,
		atmo:      atmo,
		origin:    origin,
		direction: config.LaunchDirection(),
		state:     FlightState{Position: origin, Phase: OnRail},
		logger:    kitlog.With(logger, "subsys", "flight"),
	}
	// Room for ten minutes of flight.
	s.samples = make([]TrajectorySample, 0, int(600/config.IntegrationStep)+1)
	s.emit()
	return s, nil
}

// Simulate runs a new simulation and returns its trajectory.
func Simulate(origin Vector3, config RocketConfig, atmo Atmosphere) ([]TrajectorySample, error) {
	s, err := NewSimulation(origin, config, atmo, nil)
	if err != nil {
		return nil, err
	}
	return s.Run()
}

// Run integrates the flight until it lands, aborts or exceeds the maximum flight time.
// Any atmosphere failure aborts the whole run and no trajectory is returned.
func (s *Simulation) Run() ([]TrajectorySample, error) {
	if s.ran {
		return nil, fmt.Errorf("simulation already ran")
	}
	s.ran = true
	twr := s.config.ThrustToWeight()
	level.Debug(s.logger).Log("status", "started", "rocket", s.config, "origin", s.origin, "direction", s.direction, "thrust_to_weight", twr)
	if twr <= 1 {
		level.Warn(s.logger).Log("thrust_to_weight", twr, "msg", "thrust cannot lift the rocket off the rail")
	}
	start := time.Now()
	ode.NewRK4(0, s.config.IntegrationStep, s).Solve() // Blocking.
	metrics.RecordSimulation(s.state.Phase.String(), s.steps)
	if s.err != nil {
		level.Error(s.logger).Log("status", "failed", "t", s.state.Elapsed, "err", s.err)
		return nil, s.err
	}
	if s.aborted {
		level.Warn(s.logger).Log("status", "aborted", "phase", s.state.Phase, "t", s.state.Elapsed, "z", s.state.Position.Z, "origin_z", s.origin.Z)
	} else {
		level.Info(s.logger).Log("status", "finished", "phase", s.state.Phase, "flight_time(s)", s.state.Elapsed, "steps", s.steps, "duration", time.Since(start))
	}
	return s.samples, nil
}

// State returns the current flight state.
func (s *Simulation) State() FlightState {
	return s.state
}

// Aborted returns whether the rocket fell below the launch altitude before the parachute phase.
func (s *Simulation) Aborted() bool {
	return s.aborted
}

// GetState returns the state for the integrator: position then velocity.
func (s *Simulation) GetState() []float64 {
	p, v := s.state.Position, s.state.Velocity
	return []float64{p.X, p.Y, p.Z, v.X, v.Y, v.Z}
}

// SetState sets the updated state at time t and performs the phase transitions.
func (s *Simulation) SetState(t float64, state []float64) {
	s.steps++
	if s.err != nil {
		return
	}
	prevVz := s.state.Velocity.Z
	s.state.Position = Vector3{state[0], state[1], state[2]}
	s.state.Velocity = Vector3{state[3], state[4], state[5]}
	s.state.Elapsed = t
	if !s.state.Position.IsFinite() || !s.state.Velocity.IsFinite() {
		s.err = Errorf(ParsingError, "simulate", "non finite state at t=%.3f s", t)
		return
	}

	// Only leaving from the top end of the rail counts, sliding back down is an abort.
	if s.state.Phase == OnRail && s.state.Position.Sub(s.origin).Dot(s.direction) > s.config.LaunchRailLength {
		s.transition(Powered, t)
	}
	if s.state.Phase == Powered && !s.config.Burning(t) {
		s.transition(Coast, t)
	}
	if (s.state.Phase == Powered || s.state.Phase == Coast) && prevVz >= 0 && s.state.Velocity.Z <= 0 {
		s.transition(Parachute, t)
		level.Info(s.logger).Log("event", "apogee", "t", t, "altitude(m)", s.state.Position.Z)
	}
	if s.state.Position.Z < s.origin.Z {
		if s.state.Phase == Parachute {
			s.transition(Landed, t)
		} else {
			s.aborted = true
		}
	}
	s.emit()
}

// Stop implements the stop call of the integrator.
func (s *Simulation) Stop(t float64) bool {
	switch {
	case s.err != nil, s.aborted, s.state.Phase == Landed:
		return true
	case t >= s.config.maxFlightTime():
		level.Warn(s.logger).Log("status", "killed", "t", t, "phase", s.state.Phase)
		return true
	}
	return false
}

// Func is the flight dynamics: the derivative of [position, velocity] at time t.
func (s *Simulation) Func(t float64, f []float64) (fDot []float64) {
	fDot = make([]float64, 6)
	if s.err != nil {
		return
	}
	pos := Vector3{f[0], f[1], f[2]}
	vel := Vector3{f[3], f[4], f[5]}
	cond, err := s.atmo.Conditions(pos.Z)
	if err != nil {
		s.err = err
		return
	}
	onRail := s.state.Phase == OnRail

	area, cd := s.config.CrossSectionalArea, s.config.DragCoefficient
	if s.state.Phase >= Parachute {
		area, cd = s.config.ParachuteArea, s.config.ParachuteDragCoefficient
	}
	// Inside the rail guide the wind has no effect.
	vRel := vel
	if !onRail {
		vRel = vel.Sub(cond.Wind)
	}
	drag := vRel.Scale(-0.5 * cond.Density() * cd * area * vRel.Norm())
	var thrust Vector3
	if s.config.Burning(t) {
		thrust = s.direction.Scale(s.config.Thrust)
	}
	gravity := Vector3{0, 0, -Gravity}
	if onRail {
		// The rail cancels the normal component.
		gravity = s.direction.Scale(gravity.Dot(s.direction))
	}
	acc := drag.Add(thrust).Scale(1 / s.config.Mass(t)).Add(gravity)

	posDot := vel
	if !onRail {
		posDot = vel.Sub(cond.Wind)
	}
	fDot[0], fDot[1], fDot[2] = posDot.X, posDot.Y, posDot.Z
	fDot[3], fDot[4], fDot[5] = acc.X, acc.Y, acc.Z
	return
}

// transition moves to a later phase only.
func (s *Simulation) transition(to FlightPhase, t float64) {
	if to <= s.state.Phase {
		return
	}
	level.Debug(s.logger).Log("event", "transition", "from", s.state.Phase, "to", to, "t", t, "altitude(m)", s.state.Position.Z)
	s.state.Phase = to
}

func (s *Simulation) emit() {
	s.samples = append(s.samples, TrajectorySample{
		Time:     s.state.Elapsed,
		Position: s.state.Position,
		Speed:    s.state.Velocity.Norm(),
		Phase:    s.state.Phase,
	})
}
