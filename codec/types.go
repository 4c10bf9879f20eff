package codec

import "reflect"

var mapStringAny = reflect.TypeOf(map[string]any(nil))
