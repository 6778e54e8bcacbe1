package serializer

import (
	"github.com/fxamacker/cbor/v2"
)

// NewCBORSerializer creates a new serializer using cbor encoding
func NewCBORSerializer() IRPCSerializer {
	return &cborSerializerImpl{}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c cborSerializerImpl) Serialize(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c cborSerializerImpl) Deserialize(b []byte, v any) error {
	return cbor.Unmarshal(b, v)
}
