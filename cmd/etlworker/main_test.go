package main

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwetl/internal/model"
	"dwetl/internal/runner"
)

type fakeRunner struct {
	got    []runner.Request
	during func()
}

func (f *fakeRunner) Run(ctx context.Context, req runner.Request) runner.Response {
	f.got = append(f.got, req)
	if f.during != nil {
		f.during()
	}
	return runner.Response{ETLProcess: model.ETLProcess{ID: req.ID, Name: req.Name}}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func TestHandle_RunsAndCommits(t *testing.T) {
	rn := &fakeRunner{}
	resp, commit := handle(context.Background(), rn, []byte("k-1"), []byte(`{"name":"Carga","sourceType":"json"}`), quietLogger())
	require.True(t, commit)
	require.NotNil(t, resp)
	assert.Equal(t, "k-1", resp.ID)
	require.Len(t, rn.got, 1)
	assert.Equal(t, "Carga", rn.got[0].Name)
}

func TestHandle_BodyIDWinsOverKey(t *testing.T) {
	rn := &fakeRunner{}
	resp, commit := handle(context.Background(), rn, []byte("k-1"), []byte(`{"id":"r-9","name":"x"}`), quietLogger())
	require.True(t, commit)
	assert.Equal(t, "r-9", resp.ID)
}

func TestHandle_BadJSONCommitsWithoutRunning(t *testing.T) {
	rn := &fakeRunner{}
	resp, commit := handle(context.Background(), rn, nil, []byte(`{not json`), quietLogger())
	assert.True(t, commit)
	assert.Nil(t, resp)
	assert.Empty(t, rn.got)
}

func TestHandle_ShutdownDuringRunSkipsCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rn := &fakeRunner{during: cancel}
	resp, commit := handle(ctx, rn, nil, []byte(`{"name":"x"}`), quietLogger())
	assert.False(t, commit)
	assert.Nil(t, resp)
	assert.Len(t, rn.got, 1)
}
