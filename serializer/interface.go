package serializer

// IRPCSerializer is the interface for all payload serializers
type IRPCSerializer interface {
	// Serialize serializes a value into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into the value pointed to by v
	// It returns an error if any
	Deserialize(b []byte, v any) error
}
