package notification

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchline/accounts/internal/logging"
)

func TestLoggerNotifierWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(logging.NewWithWriter(&buf, "info", "accounts"))

	err := n.Send(context.Background(), Message{Kind: KindAccountRegistered, Destination: "a@b.com", Body: "welcome"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"kind":"account_registered"`)
	assert.Contains(t, buf.String(), `"destination":"a@b.com"`)
}

func TestNilLoggerNotifierIsNoop(t *testing.T) {
	var n *LoggerNotifier
	assert.NoError(t, n.Send(context.Background(), Message{Kind: KindAccountRegistered}))
}
