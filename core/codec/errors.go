package codec

import "errors"

// Sentinel errors identifying each failure kind the codec can raise.
// Callers use errors.Is against these; the wrapping error carries the
// offending group, property name, or byte position where available.
var (
	ErrUnknownGroup       = errors.New("codec: unknown group")
	ErrSerialiseFailure   = errors.New("codec: serialise failure")
	ErrDeserialiseFailure = errors.New("codec: deserialise failure")
	ErrMalformedEscape    = errors.New("codec: malformed escape sequence")
	ErrBadDelimCount      = errors.New("codec: row key does not contain exactly three delimiters")
	ErrBadDirectionFlag   = errors.New("codec: unrecognised edge direction flag")
	ErrBadGroupEncoding   = errors.New("codec: column family is not valid utf-8")
	ErrBadLengthPrefix    = errors.New("codec: malformed property length prefix")
)
