// Package codec registers the "json" gRPC codec used by the OTP and dev services.
// Clients select it with grpc.CallContentSubtype(codec.Name).
package codec

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Name is the content subtype of the codec ("application/grpc+json").
const Name = "json"

// JSON marshals plain Go structs with encoding/json and proto messages with protojson.
type JSON struct{}

// Marshal encodes v.
func (JSON) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data into v. Empty payloads leave v at its zero value.
func (JSON) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

// Name returns Name.
func (JSON) Name() string { return Name }

func init() {
	encoding.RegisterCodec(JSON{})
}
