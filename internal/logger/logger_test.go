package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	l := New(Config{Level: "debug", Format: "json", Output: "stdout"})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	l := New(Config{Level: "not-a-level"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewDefaultWritesToStdout(t *testing.T) {
	l := NewDefault("test")
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestWithFieldsAttachesStructuredData(t *testing.T) {
	l := NewDefault("test")
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.WithFields(logrus.Fields{"job_id": "abc"}).Info("ticked")
	assert.Contains(t, buf.String(), "job_id=abc")
}
