package trace

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetEnabled(t *testing.T) {
	defer SetTarget(0)

	SetTarget(Pack)
	assert.True(t, Pack.Enabled())
	assert.False(t, General.Enabled())

	SetTarget(General | Pack)
	assert.True(t, General.Enabled())
	assert.True(t, Pack.Enabled())
}

func TestPrintf(t *testing.T) {
	defer SetTarget(0)
	defer SetLogger(log.New(log.Writer(), "", log.LstdFlags))

	var buf bytes.Buffer
	SetLogger(log.New(&buf, "", 0))

	SetTarget(Pack)
	Pack.Printf("decoded %d objects", 42)
	General.Printf("should not appear")

	assert.Contains(t, buf.String(), "decoded 42 objects")
	assert.NotContains(t, buf.String(), "should not appear")
}
