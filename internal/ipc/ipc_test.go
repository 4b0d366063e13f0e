package ipc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeSend(t *testing.T) {
	var buf bytes.Buffer
	p := NewPipe(&buf)

	require.NoError(t, p.Send(LinksGroupName, "__by_uid__"))
	require.NoError(t, p.Send("tables", "det001", "det002"))
	assert.Equal(t, "lh5_links_group_name\x1e__by_uid__\x1dtables\x1edet001\x1edet002\x1d", buf.String())

	assert.Equal(t, [][]string{
		{"lh5_links_group_name", "__by_uid__"},
		{"tables", "det001", "det002"},
	}, Parse(buf.String()+"partial"))
}

func TestNilPipe(t *testing.T) {
	p := OpenFd(-1)
	assert.Nil(t, p)
	assert.NoError(t, p.Send("anything"))
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestPipeSendErrors(t *testing.T) {
	err := NewPipe(shortWriter{}).Send("cmd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing 1 bytes")

	err = NewPipe(failWriter{}).Send("cmd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Send(LinksGroupName, "__by_uid__"))
	require.NoError(t, Discard.Send("ignored"))
	assert.Equal(t, []string{"lh5_links_group_name\x1e__by_uid__"}, r.Messages)
}
