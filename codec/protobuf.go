package codec

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Protobuf encodes proto.Message values. Decode accepts a message pointer
// (e.g. *mypb.Feed) or a pointer to one (**mypb.Feed, what the cache passes
// for V = *mypb.Feed); a nil inner pointer is allocated.
type Protobuf struct{}

var _ Codec = Protobuf{}

var messageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

func (Protobuf) Encode(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf codec: %T is not a proto.Message", v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Decode(b []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(b, m)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("protobuf codec: %T is not a proto.Message", v)
	}
	inner := rv.Elem()
	if inner.Kind() != reflect.Pointer || !inner.Type().Implements(messageType) {
		return fmt.Errorf("protobuf codec: %T is not a proto.Message", v)
	}
	if inner.IsNil() {
		inner.Set(reflect.New(inner.Type().Elem()))
	}
	return proto.Unmarshal(b, inner.Interface().(proto.Message))
}
