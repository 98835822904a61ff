package ant

import "fmt"

// Sentinel errors mirror the exception taxonomy of the library this
// package was modeled on: each is checked with errors.Is/errors.As rather
// than by type switch where possible.
var (
	// ErrNoDongle is returned when no matching USB radio is present.
	ErrNoDongle = fmt.Errorf("ant: no dongle found")

	// ErrNoMoreChannels is returned when every channel slot is in use.
	ErrNoMoreChannels = fmt.Errorf("ant: no free channel slots")

	// ErrNoMoreNetworks is returned when every network key slot is in use.
	ErrNoMoreNetworks = fmt.Errorf("ant: no free network key slots")

	// ErrInvalidFrame is returned when a byte sequence does not decode to
	// a well-formed frame.
	ErrInvalidFrame = fmt.Errorf("ant: invalid frame")

	// ErrWrongChannel is returned when a frame's channel byte does not
	// match the channel handling it.
	ErrWrongChannel = fmt.Errorf("ant: frame delivered to wrong channel")

	// ErrUnknownMessageID is returned when a channel is asked to handle a
	// message ID it has no dispatch case for.
	ErrUnknownMessageID = fmt.Errorf("ant: unknown message id")

	// ErrUnsupportedPage is returned by a profile's BroadcastPage when the
	// requested page number has no encoder.
	ErrUnsupportedPage = fmt.Errorf("ant: unsupported page")

	// ErrUnknownDataPage is returned when a received data page number has
	// no handler in a profile.
	ErrUnknownDataPage = fmt.Errorf("ant: unknown data page")

	// errNoFrameYet is internal: the ring buffer does not yet hold a
	// complete frame. Never returned past dongle.go.
	errNoFrameYet = fmt.Errorf("ant: no frame yet")
)

// WrongMessageIDError is raised by typed message parsers when asked to
// decode a message of the wrong kind.
type WrongMessageIDError struct {
	Received MessageID
	Expected MessageID
}

func (e *WrongMessageIDError) Error() string {
	return fmt.Sprintf("ant: received message id %s, expected %s", e.Received, e.Expected)
}
