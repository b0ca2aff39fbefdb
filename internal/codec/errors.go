package codec

import "fmt"

// DecodeErrorKind classifies frame decoding failures
type DecodeErrorKind string

const (
	DecodeEmpty     DecodeErrorKind = "empty"
	DecodeTruncated DecodeErrorKind = "truncated"
)

// DecodeError reports a frame that cannot be turned into a TelemetryState
type DecodeError struct {
	Kind DecodeErrorKind
	Want int // minimum length implied by the header
	Got  int
}

func (e *DecodeError) Error() string {
	if e.Kind == DecodeTruncated {
		return fmt.Sprintf("decode: truncated frame: need %d bytes, got %d", e.Want, e.Got)
	}
	return fmt.Sprintf("decode: %s frame", e.Kind)
}

// Is matches any *DecodeError of the same Kind, so the sentinels below work with errors.Is
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

// EncodeErrorKind classifies command encoding failures
type EncodeErrorKind string

const (
	EncodeTooLarge EncodeErrorKind = "too_large"
	EncodeEmpty    EncodeErrorKind = "empty"
)

// EncodeError reports a command the transport cannot carry
type EncodeError struct {
	Kind EncodeErrorKind
	Size int
	Max  int
}

func (e *EncodeError) Error() string {
	if e.Kind == EncodeTooLarge {
		return fmt.Sprintf("encode: command of %d bytes exceeds max write size %d", e.Size, e.Max)
	}
	return "encode: empty command"
}

func (e *EncodeError) Is(target error) bool {
	t, ok := target.(*EncodeError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrEmpty     = &DecodeError{Kind: DecodeEmpty}
	ErrTruncated = &DecodeError{Kind: DecodeTruncated}
	ErrTooLarge  = &EncodeError{Kind: EncodeTooLarge}
	ErrNoCommand = &EncodeError{Kind: EncodeEmpty}
)
