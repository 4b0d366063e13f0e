package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for i, name := range []string{"debug", "detail", "summary", "warning", "error", "fatal"} {
		l, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, Level(i), l)
		assert.Equal(t, name, l.String())
	}

	l, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, Warning, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
	assert.Equal(t, "Level(7)", Level(7).String())
}

func TestLog(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.TraceLevel)
	log := New(base).WithField("table", "det001")

	require.NoError(t, log.Log(Summary, "converted ", 3, " tables"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "converted 3 tables", entry.Message)
	assert.Equal(t, "det001", entry.Data["table"])

	log.Debugf("d")
	assert.Equal(t, logrus.TraceLevel, hook.LastEntry().Level)
	log.Detailf("d")
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	log.Warningf("w")
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	log.Errorf("e")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	err := log.Logf(Fatal, "missing %s", "header")
	require.Error(t, err)
	assert.True(t, ErrFatal.Is(err))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "missing header", hook.LastEntry().Message)
}

func TestQuiet(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.TraceLevel)
	log := New(base).Quiet().WithField("dry_run", true)

	log.Summaryf("hidden")
	log.Warningf("hidden")
	assert.Empty(t, hook.AllEntries())

	log.Errorf("shown")
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "shown", hook.LastEntry().Message)
	assert.Equal(t, true, hook.LastEntry().Data["dry_run"])
}

func TestNewLogrus(t *testing.T) {
	var buf bytes.Buffer
	base, counter := NewLogrus(&buf, Summary)
	log := New(base)

	log.Detailf("filtered")
	log.Summaryf("kept")
	assert.NotContains(t, buf.String(), "filtered")
	assert.Contains(t, buf.String(), "msg=kept")
	assert.NotContains(t, buf.String(), "time=")
	assert.False(t, counter.HadError())

	log.Errorf("first")
	_ = log.Log(Fatal, "second")
	assert.Equal(t, 2, counter.Count())
	assert.True(t, counter.HadError())
}
