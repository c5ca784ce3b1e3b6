package debate

// Session is the full mutable state of one debate. It is owned by a
// [Machine] and mutated only through the Machine's transition API; callers
// observe it via [Machine.Snapshot], which returns a deep copy.
type Session struct {
	// ID identifies the session across the process.
	ID string

	// Mode is the current phase.
	Mode Mode

	// Topic is set once by Initialize and immutable thereafter.
	Topic string

	ParticipantA Participant
	ParticipantB Participant

	// Agenda is the ordered moderator question sequence, fixed length once
	// generated by Start.
	Agenda []Question

	// AgendaCursor indexes the next unconsumed agenda entry. Monotonically
	// increasing; never exceeds len(Agenda).
	AgendaCursor int

	// Paused blocks scheduled advancement when true.
	Paused bool

	// Running is false before Start and after the closing summary.
	Running bool

	// currentQuestion is the question most recently put on the table by the
	// moderator. It can differ from Agenda[AgendaCursor-1] when a follow-up
	// was substituted, so participant turns reference it rather than
	// re-deriving from the agenda.
	currentQuestion Question
}

// clone returns a deep copy of the session.
func (s Session) clone() Session {
	out := s
	if s.Agenda != nil {
		out.Agenda = make([]Question, len(s.Agenda))
		copy(out.Agenda, s.Agenda)
	}
	return out
}
