package serializer

import (
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
	"CBOR": NewCBORSerializer,
}

// testMessage is a payload shape with the field kinds the transport
// typically carries
type testMessage struct {
	Key      string
	Value    []byte
	DeleteIn uint64
	Ok       bool
	Err      string
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []testMessage {
	return []testMessage{
		// Zero message
		{},

		// Request shape
		{
			Key:   "test-key",
			Value: []byte("test-value"),
		},

		// Response shape
		{
			Key:   "test-key",
			Value: []byte("test-value"),
			Ok:    true,
		},

		// Error response
		{
			Err: "test error message",
		},

		// Message with all fields filled
		{
			Key:      "test-lock-key",
			Value:    []byte("test-lock-value"),
			DeleteIn: 300,
			Ok:       true,
			Err:      "",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result testMessage
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare (nil and empty byte slices are equivalent here)
				if msg.Value == nil {
					msg.Value = result.Value
				}
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d mismatch: sent %+v, got %+v", i, msg, result)
				}
			}
		})
	}
}

// TestDeserializeGarbage tests that malformed bytes surface an error
func TestDeserializeGarbage(t *testing.T) {
	garbage := []byte{0xff, 0x00, 0x13, 0x37}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			var result testMessage
			if err := factory().Deserialize(garbage, &result); err == nil {
				t.Errorf("expected error deserializing garbage")
			}
		})
	}
}
