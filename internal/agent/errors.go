package agent

import "errors"

var (
	// ErrProvider wraps any text-generation provider failure surfaced to a
	// cycle phase.
	ErrProvider = errors.New("provider failure")
	// ErrBadVerdict means the provider answered but the reply could not be
	// parsed into the expected structure.
	ErrBadVerdict = errors.New("unparseable provider verdict")
	// ErrCadence means a follow-up was refused by the cadence policy.
	ErrCadence = errors.New("follow-up refused by cadence policy")
	// ErrUnknownRecipient means no incoming message exists to reply to.
	ErrUnknownRecipient = errors.New("no known recipient for follow-up")
	// ErrNoResume means the user has no default resume to draft from.
	ErrNoResume = errors.New("no default resume")
)
