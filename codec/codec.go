package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/seamlik/riko/errors"
)

// Envelope is the tagged result every boundary call returns. The native
// side fills at most the error arm and the value arm; both absent is a
// successful call with no meaningful return value.
//
// The value arm stays undecoded so that "no value" (nil RawValue) remains
// distinguishable from "value present and encoded as nil" (a one-byte nil
// payload).
type Envelope struct {
	Err   *ErrorInfo `msgpack:"error,omitempty"`
	Value RawValue   `msgpack:"value,omitempty"`
}

// ErrorInfo is the wire form of an error the native side reports.
type ErrorInfo struct {
	Message string `msgpack:"message"`
	Debug   string `msgpack:"debug"`
}

// RawValue is an encoded value kept verbatim until a caller asks for a
// concrete type.
type RawValue = msgpack.RawMessage

// Failed reports whether the envelope carries an error. The error arm takes
// priority: an envelope with both arms present is a failed call and its
// value is ignored.
func (e *Envelope) Failed() bool {
	return e.Err != nil
}

// HasValue reports whether the value arm is present at all.
func (e *Envelope) HasValue() bool {
	return e.Value != nil
}

// Unwrap returns the raw value arm, or the native-reported error as a
// *errors.Domain. A nil raw value with a nil error is a valid "no value"
// result.
func (e *Envelope) Unwrap() (RawValue, error) {
	if e.Err != nil {
		return nil, &errors.Domain{
			Message: e.Err.Message,
			Debug:   e.Err.Debug,
		}
	}
	return e.Value, nil
}

// Encode serializes one call argument (or compound struct) to its
// self-describing form. A nil argument encodes to a zero-length payload so
// the native side can tell "no argument" from "argument with empty content".
func Encode(v any) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}

	data, err := marshalPooled(v)
	if err != nil {
		return nil, errors.Malformed(errors.PhaseEncode, err, "encode argument")
	}
	return data, nil
}

// Decode deserializes a native response into an Envelope. A nil or
// zero-length payload is the defined "no value" response. Bytes that do not
// decode against the envelope schema are a marshaling failure, distinct
// from the envelope itself carrying a domain error.
func Decode(data []byte) (*Envelope, error) {
	env := &Envelope{}
	if len(data) == 0 {
		return env, nil
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(env); err != nil {
		return nil, errors.Malformed(errors.PhaseDecode, err, "result envelope")
	}
	return env, nil
}

// DecodeValue decodes a raw value arm into T. A nil raw value yields the
// zero value, mirroring the native side's "no value".
func DecodeValue[T any](raw RawValue) (T, error) {
	var v T
	if raw == nil {
		return v, nil
	}
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return v, errors.Malformed(errors.PhaseDecode, err, "value arm")
	}
	return v, nil
}

// Success encodes an envelope carrying v in the value arm. The native side
// of an in-process boundary uses this to answer a call.
func Success(v any) ([]byte, error) {
	env := &Envelope{}
	if v != nil {
		raw, err := marshalPooled(v)
		if err != nil {
			return nil, errors.Malformed(errors.PhaseEncode, err, "value arm")
		}
		env.Value = RawValue(raw)
	}
	return Encode(env)
}

// Failure encodes an envelope carrying err in the error arm. Encoding two
// strings cannot fail, so the payload is always usable.
func Failure(err error) []byte {
	data, encErr := Encode(&Envelope{
		Err: &ErrorInfo{
			Message: err.Error(),
			Debug:   fmt.Sprintf("%+v", err),
		},
	})
	if encErr != nil {
		// Unreachable for string fields; keep the contract total anyway.
		return []byte{}
	}
	return data
}

// Into unwraps an envelope and decodes its value arm into T in one step.
// The error arm wins over the value arm.
func Into[T any](env *Envelope) (T, error) {
	raw, err := env.Unwrap()
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeValue[T](raw)
}
