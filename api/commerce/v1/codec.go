package commercev1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype under which the JSON codec is registered.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec marshals protobuf messages with protojson and every other value with encoding/json.
type Codec struct{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(value any) ([]byte, error) {
	if message, ok := value.(proto.Message); ok {
		return protojson.Marshal(message)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("json codec marshal: %w", err)
	}
	return payload, nil
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, value any) error {
	if message, ok := value.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, message)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("json codec unmarshal: %w", err)
	}
	return nil
}

// Name implements encoding.Codec.
func (Codec) Name() string {
	return CodecName
}
