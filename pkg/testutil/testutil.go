// Package testutil provides fixtures shared by the zfits tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/zfits/pkg/catalog"
	"github.com/ajitpratap0/zfits/pkg/container/memory"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Row serializes a catalog message with the given top-level scalar fields.
// Values are passed to protoreflect.ValueOf, so they must already have the
// field's Go kind (int32, uint64, float64, string, ...).
func Row(t testing.TB, typeName string, fields map[string]any) []byte {
	t.Helper()
	msg, err := catalog.Default().NewMessage(typeName)
	require.NoError(t, err)

	for name, v := range fields {
		fd := msg.Descriptor().Fields().ByName(protoreflect.Name(name))
		require.NotNil(t, fd, "%s has no field %q", typeName, name)
		msg.Set(fd, protoreflect.ValueOf(v))
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	require.NoError(t, err)
	return data
}

// EventContainer builds an in-memory container with one "Events" table of
// R1.CameraEvent rows carrying the given event ids.
func EventContainer(t testing.TB, path string, eventIDs ...uint64) *memory.Container {
	t.Helper()
	rows := make([][]byte, len(eventIDs))
	for i, id := range eventIDs {
		rows[i] = Row(t, "R1.CameraEvent", map[string]any{
			"event_id":     id,
			"tel_event_id": id * 10,
		})
	}
	c := memory.NewContainer(path)
	c.AddTable("Events", "R1.CameraEvent", rows...)
	return c
}
