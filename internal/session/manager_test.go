package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	manager *Manager
	metrics *metrics.Manager
	store   *store.Store
	clock   *fakeClock
}

func newFixture(t *testing.T, maxSessions int) *fixture {
	t.Helper()
	f := &fixture{
		metrics: metrics.NewTestManager(),
		store:   newTestStore(t),
		clock:   newFakeClock(),
	}
	f.manager = NewManager(Config{
		Store:       f.store,
		Metrics:     f.metrics,
		Exercise:    exercise.DefaultConfig(),
		MaxSessions: maxSessions,
		Clock:       f.clock,
	})
	return f
}

func (f *fixture) createProfile(t *testing.T, id string, kind exercise.Kind, config string) *store.Profile {
	t.Helper()
	p := &store.Profile{ID: id, Name: id, Exercise: kind, Config: json.RawMessage(config)}
	require.NoError(t, f.store.Profiles().Create(p))
	return p
}

func TestManager_CreateAndProcess(t *testing.T) {
	f := newFixture(t, 0)

	s, err := f.manager.Create(CreateParams{Exercise: exercise.KindPushup})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, exercise.KindPushup, s.Exercise)
	assert.Empty(t, s.ProfileID)
	assert.Equal(t, 1, f.manager.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GaugeSessions))

	for _, frame := range []pose.Frame{pose.PushupFrame(170, 170), pose.PushupFrame(50, 170), pose.PushupFrame(170, 170)} {
		_, ok := s.Process(frame)
		require.True(t, ok)
	}

	state := s.State()
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, exercise.StageUp, state.Stage)

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CounterFrames.WithLabelValues("pushup", resultEvaluated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterReps.WithLabelValues("pushup")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.CounterFormWarnings.WithLabelValues("pushup")))

	info := s.Info()
	assert.Equal(t, 3, info.Frames)
	assert.Equal(t, 0, info.Skipped)
	assert.Equal(t, 1, info.State.Count)
}

func TestManager_CreateUnsupportedExercise(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.manager.Create(CreateParams{Exercise: "lunge"})
	assert.ErrorIs(t, err, exercise.ErrUnsupportedExercise)
	assert.Equal(t, 0, f.manager.Len())
}

func TestSession_SkippedFrames(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	require.NoError(t, err)

	_, ok := s.Process(pose.Frame{Landmarks: make([]pose.Landmark, 10)})
	assert.False(t, ok)

	info := s.Info()
	assert.Equal(t, 0, info.Frames)
	assert.Equal(t, 1, info.Skipped)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterFrames.WithLabelValues("squat", resultSkipped)))
}

func TestSession_FormWarningsCounted(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.manager.Create(CreateParams{Exercise: exercise.KindPushup})
	require.NoError(t, err)

	state, ok := s.Process(pose.PushupFrame(170, 100))
	require.True(t, ok)
	assert.False(t, state.IsCorrectForm)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterFormWarnings.WithLabelValues("pushup")))
}

func TestManager_CreateWithProfile(t *testing.T) {
	f := newFixture(t, 0)
	f.createProfile(t, "shallow", exercise.KindPushup, `{"down_threshold": 40}`)

	s, err := f.manager.Create(CreateParams{Exercise: exercise.KindPushup, ProfileID: "shallow"})
	require.NoError(t, err)
	assert.Equal(t, "shallow", s.ProfileID)

	s.Process(pose.PushupFrame(170, 170))
	state, _ := s.Process(pose.PushupFrame(50, 170))
	assert.Equal(t, exercise.StageUp, state.Stage, "50 degrees is above the profile's down threshold")

	state, _ = s.Process(pose.PushupFrame(30, 170))
	assert.Equal(t, exercise.StageDown, state.Stage)
}

func TestManager_CreateUsesDefaultProfile(t *testing.T) {
	f := newFixture(t, 0)
	p := f.createProfile(t, "home", exercise.KindSquat, `{"smoothing_alpha": 1}`)
	require.NoError(t, f.store.SetDefaultProfile(p))

	s, err := f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	require.NoError(t, err)
	assert.Equal(t, "home", s.ProfileID)

	s.Process(pose.SquatFrame(170, 0))
	state, _ := s.Process(pose.SquatFrame(80, 0))
	assert.InDelta(t, 80, state.Angles["knee"], 1e-6, "alpha 1 disables smoothing")

	other, err := f.manager.Create(CreateParams{Exercise: exercise.KindPlank})
	require.NoError(t, err)
	assert.Empty(t, other.ProfileID)
}

func TestManager_CreateProfileErrors(t *testing.T) {
	f := newFixture(t, 0)
	f.createProfile(t, "planks", exercise.KindPlank, `{}`)
	f.createProfile(t, "broken", exercise.KindSquat, `{"up_threshold": 50}`)

	_, err := f.manager.Create(CreateParams{Exercise: exercise.KindSquat, ProfileID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.manager.Create(CreateParams{Exercise: exercise.KindSquat, ProfileID: "planks"})
	assert.ErrorIs(t, err, ErrProfileMismatch)

	_, err = f.manager.Create(CreateParams{Exercise: exercise.KindSquat, ProfileID: "broken"})
	assert.ErrorIs(t, err, exercise.ErrInvalidConfig)

	assert.Equal(t, 0, f.manager.Len())
}

func TestManager_WithoutStore(t *testing.T) {
	m := NewManager(Config{Exercise: exercise.DefaultConfig()})

	s, err := m.Create(CreateParams{Exercise: exercise.KindPlank})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = m.Create(CreateParams{Exercise: exercise.KindPlank, ProfileID: "any"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_MaxSessions(t *testing.T) {
	f := newFixture(t, 2)

	a, err := f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	require.NoError(t, err)
	_, err = f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	require.NoError(t, err)

	_, err = f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	assert.ErrorIs(t, err, ErrTooManySessions)

	require.NoError(t, f.manager.Delete(a.ID))
	_, err = f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	assert.NoError(t, err)
}

func TestManager_GetListDelete(t *testing.T) {
	f := newFixture(t, 0)

	first, err := f.manager.Create(CreateParams{Exercise: exercise.KindPushup})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.manager.Create(CreateParams{Exercise: exercise.KindPlank, Side: pose.SideLeft})
	require.NoError(t, err)

	got, err := f.manager.Get(second.ID)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, pose.SideLeft, got.Side)

	list := f.manager.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	require.NoError(t, f.manager.Delete(first.ID))
	_, err = f.manager.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.manager.Delete(first.ID), ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GaugeSessions))
}

func TestSession_Reset(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.manager.Create(CreateParams{Exercise: exercise.KindPushup})
	require.NoError(t, err)

	s.Process(pose.PushupFrame(170, 170))
	s.Process(pose.PushupFrame(50, 170))
	s.Process(pose.PushupFrame(170, 170))
	require.Equal(t, 1, s.State().Count)

	state := s.Reset()
	assert.Equal(t, 0, state.Count)
	assert.Equal(t, 0, s.Info().Frames)

	s.Process(pose.PushupFrame(170, 170))
	s.Process(pose.PushupFrame(50, 170))
	s.Process(pose.PushupFrame(170, 170))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CounterReps.WithLabelValues("pushup")), "reps after a reset are counted again")
}

func TestManager_Sweep(t *testing.T) {
	f := newFixture(t, 0)

	idle, err := f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	require.NoError(t, err)
	active, err := f.manager.Create(CreateParams{Exercise: exercise.KindSquat})
	require.NoError(t, err)

	f.clock.Advance(4 * time.Minute)
	active.Process(pose.SquatFrame(170, 0))
	f.clock.Advance(2 * time.Minute)

	assert.Equal(t, 0, f.manager.Sweep(0), "zero disables sweeping")
	assert.Equal(t, 1, f.manager.Sweep(5*time.Minute))

	_, err = f.manager.Get(idle.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.manager.Get(active.ID)
	assert.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterSessionsSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GaugeSessions))
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.manager.Create(CreateParams{Exercise: exercise.KindPlank})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.manager.Run(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.manager.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSession_ConcurrentProcess(t *testing.T) {
	f := newFixture(t, 0)
	s, err := f.manager.Create(CreateParams{Exercise: exercise.KindPushup})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Process(pose.PushupFrame(170, 170))
				s.Info()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, s.Info().Frames)
}
