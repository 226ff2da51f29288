package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/pose"
)

func jsonLines(t *testing.T, frames ...pose.Frame) string {
	t.Helper()
	var b strings.Builder
	for _, f := range frames {
		data, err := json.Marshal(f)
		require.NoError(t, err)
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestReplay_PushupSummary(t *testing.T) {
	clock := &frameClock{step: time.Second / 30}
	e, err := exercise.New(exercise.KindPushup, exercise.DefaultConfig(), clock)
	require.NoError(t, err)

	in := jsonLines(t,
		pose.PushupFrame(170, 170), pose.PushupFrame(50, 170), pose.PushupFrame(170, 170),
		pose.Frame{Landmarks: make([]pose.Landmark, 3)},
	)
	var out bytes.Buffer

	res, err := replay(strings.NewReader(in), &out, e, clock, pose.SideAuto, true)
	require.NoError(t, err)
	assert.Equal(t, 4, res.frames)
	assert.Equal(t, 1, res.rejected)

	var state exercise.State
	require.NoError(t, json.Unmarshal(out.Bytes(), &state))
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, exercise.KindPushup, state.Exercise)
}

func TestReplay_PerFrameOutput(t *testing.T) {
	clock := &frameClock{step: time.Second / 30}
	e, err := exercise.New(exercise.KindSquat, exercise.DefaultConfig(), clock)
	require.NoError(t, err)

	in := jsonLines(t, pose.SquatFrame(170, 0)) + "\n" + jsonLines(t, pose.SquatFrame(170, 0))
	var out bytes.Buffer

	_, err = replay(strings.NewReader(in), &out, e, clock, pose.SideLeft, false)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "blank lines are skipped")

	var last outputLine
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	assert.Equal(t, 3, last.Line)
	assert.True(t, last.Accepted)
}

func TestReplay_InvalidLine(t *testing.T) {
	clock := &frameClock{}
	e, err := exercise.New(exercise.KindSquat, exercise.DefaultConfig(), clock)
	require.NoError(t, err)

	_, err = replay(strings.NewReader("{not json}\n"), &bytes.Buffer{}, e, clock, pose.SideAuto, false)
	assert.ErrorContains(t, err, "line 1")
}

func TestReplay_PlankHoldUsesFrameTime(t *testing.T) {
	clock := &frameClock{step: 100 * time.Millisecond}
	e, err := exercise.New(exercise.KindPlank, exercise.DefaultConfig(), clock)
	require.NoError(t, err)

	var frames []pose.Frame
	for i := 0; i < 31; i++ {
		frames = append(frames, pose.PlankFrame(0))
	}
	var out bytes.Buffer

	_, err = replay(strings.NewReader(jsonLines(t, frames...)), &out, e, clock, pose.SideAuto, true)
	require.NoError(t, err)

	var state exercise.State
	require.NoError(t, json.Unmarshal(out.Bytes(), &state))
	require.NotNil(t, state.Timer)
	assert.InDelta(t, 2.0, *state.Timer, 1e-6)
	assert.Equal(t, "HOLDING", state.Phase)
}

func TestFrameClock_Timestamps(t *testing.T) {
	c := &frameClock{step: time.Second}

	c.advance(pose.Frame{})
	start := c.Now()
	c.advance(pose.Frame{})
	assert.Equal(t, time.Second, c.Now().Sub(start))

	c.advance(pose.Frame{Timestamp: 5000})
	assert.Equal(t, time.UnixMilli(5000), c.Now())
}
