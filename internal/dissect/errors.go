package dissect

import (
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
)

// Dissection errors.
var (
	// ErrTruncated indicates a frame ended before a layer was complete.
	// It is the same value as packet.ErrTruncated.
	ErrTruncated = packet.ErrTruncated

	// ErrUnsupportedLinkType indicates a capture link type with no decoder
	ErrUnsupportedLinkType = errors.New("unsupported link type")
)

// TruncatedError reports the layer that ran out of bytes.
type TruncatedError struct {
	Layer Kind
	Need  int
	Have  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated %s header: need %d bytes, have %d", e.Layer, e.Need, e.Have)
}

// Is makes errors.Is(err, ErrTruncated) match.
func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncated
}

func truncated(layer Kind, need, have int) error {
	return &TruncatedError{Layer: layer, Need: need, Have: have}
}

// IsTruncated returns true if the error indicates a short frame.
func IsTruncated(err error) bool {
	return errors.Is(err, ErrTruncated)
}

// TruncatedLayer returns the layer named by a truncation error.
func TruncatedLayer(err error) (Kind, bool) {
	var te *TruncatedError
	if errors.As(err, &te) {
		return te.Layer, true
	}
	return 0, false
}

// IsUnsupportedLinkType returns true if the capture link type has no decoder.
func IsUnsupportedLinkType(err error) bool {
	return errors.Is(err, ErrUnsupportedLinkType)
}
