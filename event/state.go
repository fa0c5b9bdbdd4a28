package event

// IdentifierState is the derived snapshot for one identifier: the fold of
// Apply over every accepted event from sequence 0 through Sequence.
type IdentifierState struct {
	Identifier       IdentifierPrefix
	Sequence         uint64
	LastEventDigest  EventDigest
	CurrentKeys      []PublicKey
	CurrentThreshold ThresholdSpec
	NextDigest       EventDigest
	Witnesses        []IdentifierPrefix
	WitnessThreshold int
	Delegator        IdentifierPrefix
	LastEventType    EventType
}

// ExpectedNextSequence returns the sequence number the next event for this
// identifier must carry. For the zero-value (no prior state) this is 0.
func (s *IdentifierState) ExpectedNextSequence() uint64 {
	if s == nil {
		return 0
	}
	return s.Sequence + 1
}

// Apply folds one already-validated event onto prior state, producing the
// new state. It performs no validation itself — Validator.Classify must
// already have returned Accept for evt before Apply is called; this keeps
// invariant 3 of the top-level spec (state == fold(apply, kel)) trivially
// true regardless of how Apply is invoked.
//
// prior is nil for an inception event.
func Apply(prior *IdentifierState, evt KeyEvent, digest EventDigest) IdentifierState {
	next := IdentifierState{
		Identifier:      evt.Identifier,
		Sequence:        evt.Sequence,
		LastEventDigest: digest,
		LastEventType:   evt.Type,
	}

	switch evt.Type {
	case Inception, DelegatedInception:
		next.CurrentKeys = evt.CurrentKeys
		next.CurrentThreshold = evt.CurrentThreshold
		next.NextDigest = evt.NextDigest
		next.Witnesses = evt.Witnesses
		next.WitnessThreshold = evt.WitnessThreshold
		next.Delegator = evt.Delegator
	case Rotation, DelegatedRotation:
		next.CurrentKeys = evt.CurrentKeys
		next.CurrentThreshold = evt.CurrentThreshold
		next.NextDigest = evt.NextDigest
		next.Witnesses = resolveWitnesses(prior, evt)
		next.WitnessThreshold = resolveWitnessThreshold(prior, evt)
		next.Delegator = resolveDelegator(prior, evt)
	case Interaction:
		// Interaction events anchor data without changing key state.
		next.CurrentKeys = prior.CurrentKeys
		next.CurrentThreshold = prior.CurrentThreshold
		next.NextDigest = prior.NextDigest
		next.Witnesses = prior.Witnesses
		next.WitnessThreshold = prior.WitnessThreshold
		next.Delegator = prior.Delegator
	}

	return next
}

func resolveWitnesses(prior *IdentifierState, evt KeyEvent) []IdentifierPrefix {
	if evt.Witnesses != nil {
		return evt.Witnesses
	}
	if prior != nil {
		return prior.Witnesses
	}
	return nil
}

func resolveWitnessThreshold(prior *IdentifierState, evt KeyEvent) int {
	if evt.WitnessThreshold != 0 {
		return evt.WitnessThreshold
	}
	if prior != nil {
		return prior.WitnessThreshold
	}
	return 0
}

func resolveDelegator(prior *IdentifierState, evt KeyEvent) IdentifierPrefix {
	if evt.Delegator != "" {
		return evt.Delegator
	}
	if prior != nil {
		return prior.Delegator
	}
	return ""
}
