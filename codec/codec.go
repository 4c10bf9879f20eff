// Package codec serializes cached values to the bytes a store keeps.
//
// JSON is the default and the persisted convention: entries written by one
// process must decode in the next, so switching codecs on a populated store
// turns existing entries into misses until they are rewritten.
package codec

// Codec encodes Go values to []byte for storage and back.
// Decode receives a pointer to the destination, like encoding/json.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte, v any) error
}
