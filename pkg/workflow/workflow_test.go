package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/state"
)

type mockStageAPI struct {
	mock.Mock
}

func (m *mockStageAPI) Session(ctx context.Context) (models.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(models.Session)
	return s, args.Error(1)
}

func (m *mockStageAPI) StartEaseVoice(ctx context.Context, req models.EaseVoiceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStageAPI) StartUVR5(ctx context.Context, req models.UVR5Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStageAPI) StartSlicer(ctx context.Context, req models.SlicerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStageAPI) StartDenoise(ctx context.Context, req models.DenoiseRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStageAPI) StartASR(ctx context.Context, req models.ASRRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStageAPI) StartNormalize(ctx context.Context, req models.NormalizeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStageAPI) StartSovitsTraining(ctx context.Context, req models.SovitsTrainRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStageAPI) StartGPTTraining(ctx context.Context, req models.GPTTrainRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

var demo = models.Namespace{Name: "demo", HomePath: "/data/demo"}

func TestSlicerValidation(t *testing.T) {
	f := NewSlicerForm()
	f.Threshold = 5
	f.NormalizeMax = 1.5
	f.HopSize = 0

	err := f.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.NotNil(t, verrs.Field("source_dir"))
	assert.NotNil(t, verrs.Field("threshold"))
	assert.NotNil(t, verrs.Field("normalize_max"))
	assert.NotNil(t, verrs.Field("hop_size"))
	assert.Nil(t, verrs.Field("alpha_mix"))

	var one *ValidationError
	assert.ErrorAs(t, err, &one)

	f.Prefill(demo, nil)
	f.Threshold = -100
	f.NormalizeMax = 0
	f.HopSize = 10
	assert.NoError(t, f.Validate())
}

func TestVoiceCloneValidation(t *testing.T) {
	f := NewVoiceCloneForm()
	f.SpeedFactor = 0
	f.Temperature = 1.5

	var verrs ValidationErrors
	require.ErrorAs(t, f.Validate(), &verrs)
	for _, field := range []string{"text", "ref_audio", "sovits_path", "gpt_path", "speed_factor", "temperature"} {
		assert.NotNil(t, verrs.Field(field), field)
	}

	f.Text = "你好"
	f.RefAudio = "blob:1"
	f.Prefill(&models.VoiceCloneModels{GPTs: []string{"g1", "g2"}, Sovits: []string{"s1"}})
	f.SpeedFactor = 2
	f.Temperature = 1
	require.NoError(t, f.Validate())
	assert.Equal(t, "g2", f.GPTPath)
	assert.Equal(t, "s1", f.SovitsPath)

	req := f.Request("QUJD")
	assert.Equal(t, "QUJD", req.RefAudio)
	assert.Equal(t, "你好", req.Text)
}

func TestPrefillChain(t *testing.T) {
	st := state.NewInMemory()
	require.NoError(t, st.Paths.Set(models.StageUVR5, models.PathPair{SourceDir: "/data/demo/voices", OutputDir: "/data/demo/vocals"}))
	require.NoError(t, st.Paths.Set(models.StageASR, models.PathPair{SourceDir: "/data/demo/clean", OutputDir: "/data/demo/text"}))
	// Outputs from another namespace are ignored.
	require.NoError(t, st.Paths.Set(models.StageSlicer, models.PathPair{OutputDir: "/data/other/slices"}))

	slicer := NewSlicerForm()
	slicer.Prefill(demo, st.Paths)
	assert.Equal(t, "/data/demo/vocals", slicer.SourceDir)
	assert.Equal(t, "/data/demo/slicer", slicer.OutputDir)

	denoise := NewDenoiseForm()
	denoise.Prefill(demo, st.Paths)
	assert.Equal(t, "/data/demo/slicer", denoise.SourceDir)

	norm := NewNormalizeForm()
	norm.Prefill(demo, st.Paths)
	assert.Equal(t, "/data/demo/text", norm.SourceDir)

	var ref RefinementForm
	ref.Prefill(demo, st.Paths)
	assert.Equal(t, "/data/demo/clean", ref.InputDir)
	assert.Equal(t, "/data/demo/text", ref.OutputDir)

	gpt := NewGPTForm()
	gpt.Prefill(demo, st.Paths)
	assert.Equal(t, "/data/demo/normalize", gpt.TrainInputDir)
	assert.Equal(t, "demo", gpt.OutputModelName)

	explicit := NewUVR5Form()
	explicit.SourceDir = "/mine"
	explicit.Prefill(demo, st.Paths)
	assert.Equal(t, "/mine", explicit.SourceDir)
}

func newRunner(a StageAPI) (*Runner, *state.State) {
	st := state.NewInMemory()
	return NewRunner(a, st, NewFeed(a, st.UUIDs), nil), st
}

func TestSubmitStoresUUIDAndPaths(t *testing.T) {
	a := &mockStageAPI{}
	a.On("StartDenoise", mock.Anything, mock.AnythingOfType("models.DenoiseRequest")).Return("u-1", nil).Once()
	r, st := newRunner(a)

	f := NewDenoiseForm()
	f.Prefill(demo, st.Paths)
	uuid, err := r.Submit(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "u-1", uuid)
	assert.Equal(t, "u-1", st.UUIDs.Get(models.StageDenoise))

	pair, ok := st.Paths.Get(models.StageDenoise)
	require.True(t, ok)
	assert.Equal(t, "/data/demo/denoise", pair.OutputDir)
	a.AssertNotCalled(t, "Session", mock.Anything)
}

func TestSubmitWhileRunningDoesNotCallAPI(t *testing.T) {
	a := &mockStageAPI{}
	a.On("Session", mock.Anything).Return(models.Session{
		"u-1": {UUID: "u-1", TaskName: "asr", Status: models.TaskRunning},
	}, nil).Once()
	r, st := newRunner(a)
	require.NoError(t, st.UUIDs.Set(models.StageASR, "u-1"))

	f := NewASRForm()
	f.Prefill(demo, st.Paths)
	_, err := r.Submit(context.Background(), f)
	assert.ErrorIs(t, err, ErrStageRunning)

	_, err = r.Submit(context.Background(), f)
	assert.ErrorIs(t, err, ErrStageRunning)

	a.AssertNotCalled(t, "StartASR", mock.Anything, mock.Anything)
	a.AssertNumberOfCalls(t, "Session", 1)
}

func TestSubmitAfterCompletion(t *testing.T) {
	a := &mockStageAPI{}
	a.On("Session", mock.Anything).Return(models.Session{
		"u-1": {UUID: "u-1", Status: models.TaskCompleted},
	}, nil)
	a.On("StartASR", mock.Anything, mock.Anything).Return("u-2", nil)
	r, st := newRunner(a)
	require.NoError(t, st.UUIDs.Set(models.StageASR, "u-1"))

	f := NewASRForm()
	f.Prefill(demo, st.Paths)
	uuid, err := r.Submit(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "u-2", uuid)
}

func TestSecondSubmitSeesJustStartedJob(t *testing.T) {
	a := &mockStageAPI{}
	a.On("Session", mock.Anything).Return(models.Session{
		"u-1": {UUID: "u-1", Status: models.TaskCompleted},
	}, nil).Once()
	a.On("Session", mock.Anything).Return(models.Session{
		"u-1": {UUID: "u-1", Status: models.TaskCompleted},
		"u-2": {UUID: "u-2", TaskName: "asr", Status: models.TaskRunning},
	}, nil)
	a.On("StartASR", mock.Anything, mock.Anything).Return("u-2", nil).Once()
	r, st := newRunner(a)
	require.NoError(t, st.UUIDs.Set(models.StageASR, "u-1"))

	f := NewASRForm()
	f.Prefill(demo, st.Paths)
	uuid, err := r.Submit(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "u-2", uuid)

	// The snapshot predates u-2, so the runner has to refetch before deciding.
	_, err = r.Submit(context.Background(), f)
	assert.ErrorIs(t, err, ErrStageRunning)
	a.AssertNumberOfCalls(t, "StartASR", 1)
	a.AssertNumberOfCalls(t, "Session", 2)
}

func TestSubmitValidationFailsBeforeRequest(t *testing.T) {
	a := &mockStageAPI{}
	r, _ := newRunner(a)

	_, err := r.Submit(context.Background(), NewSlicerForm())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	a.AssertNotCalled(t, "StartSlicer", mock.Anything, mock.Anything)
}

func TestFeedStatusMissingUUID(t *testing.T) {
	a := &mockStageAPI{}
	a.On("Session", mock.Anything).Return(models.Session{
		"u-1": {UUID: "u-1", Status: models.TaskFailed, Error: "oom"},
	}, nil)
	st := state.NewInMemory()
	feed := NewFeed(a, st.UUIDs)
	_, err := feed.Refresh(context.Background())
	require.NoError(t, err)

	_, ok := feed.Status(models.StageGPT)
	assert.False(t, ok)

	require.NoError(t, st.UUIDs.Set(models.StageGPT, "gone"))
	_, ok = feed.Status(models.StageGPT)
	assert.False(t, ok)

	require.NoError(t, st.UUIDs.Set(models.StageGPT, "u-1"))
	task, ok := feed.Status(models.StageGPT)
	require.True(t, ok)
	assert.Equal(t, "oom", task.Error)
	_, running := feed.AnyRunning()
	assert.False(t, running)
}

func TestFeedKeepsSnapshotOnError(t *testing.T) {
	a := &mockStageAPI{}
	a.On("Session", mock.Anything).Return(models.Session{"u": {UUID: "u"}}, nil).Once()
	a.On("Session", mock.Anything).Return(nil, errors.New("timeout")).Once()
	feed := NewFeed(a, state.NewInMemory().UUIDs)

	_, err := feed.Refresh(context.Background())
	require.NoError(t, err)
	s, err := feed.Refresh(context.Background())
	assert.Error(t, err)
	assert.Len(t, s, 1)
	assert.Error(t, feed.LastError())
}

func TestPollerStopsOnCancel(t *testing.T) {
	a := &mockStageAPI{}
	a.On("Session", mock.Anything).Return(models.Session{}, nil)
	feed := NewFeed(a, state.NewInMemory().UUIDs)
	p := NewPoller(feed, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var polls int32
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(models.Session, error) {
			if atomic.AddInt32(&polls, 1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

type mockRefinementAPI struct {
	mock.Mock
}

func (m *mockRefinementAPI) ListRefinements(ctx context.Context, in, out string) ([]models.RefinementItem, error) {
	args := m.Called(ctx, in, out)
	items, _ := args.Get(0).([]models.RefinementItem)
	return items, args.Error(1)
}

func (m *mockRefinementAPI) UpdateRefinement(ctx context.Context, req models.RefinementRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRefinementAPI) DeleteRefinement(ctx context.Context, req models.RefinementRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRefinementAPI) ReloadRefinements(ctx context.Context, in, out string) ([]models.RefinementItem, error) {
	args := m.Called(ctx, in, out)
	items, _ := args.Get(0).([]models.RefinementItem)
	return items, args.Error(1)
}

func TestRefiner(t *testing.T) {
	a := &mockRefinementAPI{}
	form := RefinementForm{InputDir: "/d/in", OutputDir: "/d/out"}
	a.On("ListRefinements", mock.Anything, "/d/in", "/d/out").Return([]models.RefinementItem{{SourceFilePath: "a.wav", Text: "hi"}}, nil)
	a.On("UpdateRefinement", mock.Anything, models.RefinementRequest{
		InputDir: "/d/in", OutputDir: "/d/out", SourceFilePath: "a.wav", Language: "en", Text: "hello",
	}).Return(nil)
	a.On("DeleteRefinement", mock.Anything, models.RefinementRequest{
		InputDir: "/d/in", OutputDir: "/d/out", SourceFilePath: "a.wav",
	}).Return(nil)

	r := NewRefiner(a)
	ctx := context.Background()

	items, err := r.List(ctx, form)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, r.Update(ctx, form, models.RefinementItem{SourceFilePath: "a.wav", Language: "en", Text: " hello "}))
	require.NoError(t, r.Delete(ctx, form, "a.wav"))

	var verr *ValidationError
	assert.ErrorAs(t, r.Update(ctx, form, models.RefinementItem{SourceFilePath: "a.wav"}), &verr)
	_, err = r.List(ctx, RefinementForm{})
	assert.ErrorAs(t, err, &verr)
	a.AssertExpectations(t)
}
