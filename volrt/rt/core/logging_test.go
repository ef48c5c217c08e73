package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_Streams(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(&out, &errOut, "volrt", false, 0)

	l.Debugf("hidden %d", 1)
	l.Infof("loaded %s", "bonsai")
	l.Warnf("reload failed")
	l.Errorf("device lost")

	assert.Equal(t, "[volrt] INFO: loaded bonsai\n", out.String())
	assert.Equal(t, "[volrt] WARN: reload failed\n[volrt] ERROR: device lost\n", errOut.String())

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 2)
	assert.Contains(t, out.String(), "[volrt] DEBUG: shown 2")
}

func TestDefaultLogger_NoPrefix(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(&out, &out, "", false, 0)
	l.Infof("x")
	assert.Equal(t, "INFO: x\n", out.String())
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	assert.NotNil(t, l)
	assert.False(t, l.DebugEnabled())
	l.Warnf("discarded")

	d := NewDefaultLogger("p", false)
	assert.Same(t, d, OrNop(d))
}
