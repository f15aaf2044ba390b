package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARNING, ParseLevel(" WARN "))
	assert.Equal(t, WARNING, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestDefaultLogLevels(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewLogger(&buffer, WARNING)

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	assert.Empty(t, buffer.String())

	logger.Warningf("warn %d", 3)
	logger.Errorf("error %d", 4)
	out := buffer.String()
	assert.Contains(t, out, "warn 3")
	assert.Contains(t, out, "error 4")
	assert.Contains(t, out, "app=lant")
}
