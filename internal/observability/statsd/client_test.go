package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" auth/sign_in ": "auth_sign_in",
		"foo..bar":       "foo.bar",
		"a:b|c":          "a_b_c",
		".":              "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), "input %q", input)
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	got := formatLine("campus.auth.sign_in", "1", "c",
		map[string]string{"env": "prod", " service ": " api "},
		map[string]string{"result": " success ", "": "ignored", "env": "stage"},
	)
	assert.Equal(t, "campus.auth.sign_in:1|c|#env:stage,result:success,service:api", got)
	assert.Equal(t, "x:2|ms", formatLine("x", "2", "ms", nil, nil))
}

func TestClient_WritesOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewClient(Config{Address: pc.LocalAddr().String(), Prefix: " campus. "})
	require.NoError(t, err)
	defer c.Close()

	c.Timing("upload.duration", 1500*time.Microsecond, map[string]string{"folder": "branding"})

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "campus.upload.duration:1.5|ms|#folder:branding", string(buf[:n]))
}

func TestClient_NilAndClosedAreNoops(t *testing.T) {
	t.Parallel()

	var c *Client
	c.Count("x", 1, nil)
	assert.NoError(t, c.Close())

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()
	live, err := NewClient(Config{Address: pc.LocalAddr().String()})
	require.NoError(t, err)
	require.NoError(t, live.Close())
	live.Count("x", 1, nil)
	require.NoError(t, live.Close())
}

func TestNewClient_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Address: " "})
	assert.Error(t, err)
}
