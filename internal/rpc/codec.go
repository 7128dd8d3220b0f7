package rpc

import "fmt"

// wireMessage is implemented by every request and response in this package.
type wireMessage interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(b []byte) error
}

// wireCodec satisfies grpc's encoding.Codec. It registers under the standard
// "proto" name so peers see an ordinary application/grpc+proto exchange.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("rpc codec: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("rpc codec: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func (wireCodec) Name() string { return "proto" }
