package tel

import (
	"errors"

	"github.com/seriouscoderone/keriox/kelerr"
)

// Sentinel errors mirroring support/teliox's Error enum (OutOfOrderError,
// MissingIssuerEventError, MissingRegistryError, DigestsNotMatchError,
// EventAlreadySavedError). Classify does not return ErrMissingRegistry on
// any path. Wrapped with kelerr.Wrap the same way the KEL side wraps its own
// sentinels, so errors.Is still resolves to these regardless of the wrapping
// detail text.
var (
	ErrMalformedTelEvent  = errors.New("tel: malformed event")
	ErrOutOfOrder         = errors.New("tel: event out of order")
	ErrMissingIssuerEvent = errors.New("tel: anchoring kel event not found")
	ErrMissingRegistry    = errors.New("tel: unknown registry")
	ErrDigestsNotMatch    = errors.New("tel: prior digest does not match")
	ErrEventAlreadySaved  = errors.New("tel: event already accepted")
	ErrDuplicitous        = errors.New("tel: duplicitous event")
)

type stringError string

func (e stringError) Error() string { return string(e) }

// wrapf wraps a detail string against sentinel, matching validator.reject's
// errString/kelerr.Wrap idiom on the KEL side.
func wrapf(detail string, sentinel error) error {
	return kelerr.Wrap(stringError(detail), "tel classify", sentinel)
}
