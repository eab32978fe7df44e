package orchestrator

// Policy chooses the audio action for a trigger when the caller does not
// name one.
type Policy interface {
	Decide(ev TriggerEvent, audioStarted bool) AudioAction
}

// ManualPolicy never touches audio; callers pass actions explicitly.
type ManualPolicy struct{}

// Decide implements Policy.
func (ManualPolicy) Decide(TriggerEvent, bool) AudioAction {
	return ActionNone
}

// CadencePolicy starts audio on the first trigger and jumps on every
// JumpEvery-th trigger after that. JumpEvery <= 0 never jumps.
type CadencePolicy struct {
	JumpEvery int
}

// Decide implements Policy.
func (p CadencePolicy) Decide(ev TriggerEvent, audioStarted bool) AudioAction {
	if !audioStarted {
		return ActionStart
	}
	if p.JumpEvery > 0 && ev.Ordinal%uint64(p.JumpEvery) == 0 {
		return ActionJump
	}
	return ActionNone
}

// PolicyFor returns the default policy for jumpEvery.
func PolicyFor(jumpEvery int) Policy {
	if jumpEvery <= 0 {
		return ManualPolicy{}
	}
	return CadencePolicy{JumpEvery: jumpEvery}
}
