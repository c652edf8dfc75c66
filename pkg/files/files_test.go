package files

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/models"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListDirectory(ctx context.Context, dir string) (*models.Listing, error) {
	args := m.Called(ctx, dir)
	l, _ := args.Get(0).(*models.Listing)
	return l, args.Error(1)
}

func (m *mockAPI) CreateDirectory(ctx context.Context, dir string) error {
	return m.Called(ctx, dir).Error(0)
}

func (m *mockAPI) UploadFile(ctx context.Context, req api.UploadRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAPI) DownloadFile(ctx context.Context, p string) ([]byte, error) {
	args := m.Called(ctx, p)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *mockAPI) DeletePaths(ctx context.Context, paths []string) error {
	return m.Called(ctx, paths).Error(0)
}

type toasts struct {
	mu   sync.Mutex
	msgs []string
	errs int
}

func (t *toasts) Notify(level Level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
	if level == LevelError {
		t.errs++
	}
}

func listing(dir string, names ...string) *models.Listing {
	l := &models.Listing{Path: dir}
	for _, n := range names {
		l.Files = append(l.Files, models.NewFileItem(dir, n, 1, time.Now()))
	}
	return l
}

func TestListFailsSoft(t *testing.T) {
	m := &mockAPI{}
	m.On("ListDirectory", mock.Anything, "/ns").Return(nil, errors.New("connection refused"))
	tt := &toasts{}
	mgr := NewManager(m, WithNotifier(tt))

	l := mgr.List(context.Background(), "/ns")
	assert.Equal(t, "/ns", l.Path)
	assert.Zero(t, l.Len())
	assert.Equal(t, 1, tt.errs)
}

func TestListAlwaysRefetches(t *testing.T) {
	m := &mockAPI{}
	m.On("ListDirectory", mock.Anything, "/ns").Return(listing("/ns", "a.wav"), nil).Once()
	m.On("ListDirectory", mock.Anything, "/ns").Return(listing("/ns", "a.wav", "b.wav"), nil).Once()
	mgr := NewManager(m)

	first := mgr.List(context.Background(), "/ns")
	assert.Len(t, first.Files, 1)

	// A server-side job wrote b.wav in the meantime.
	second := mgr.List(context.Background(), "/ns")
	assert.Len(t, second.Files, 2)
	m.AssertNumberOfCalls(t, "ListDirectory", 2)

	cached, ok := mgr.Cached("/ns")
	require.True(t, ok)
	assert.Equal(t, second, cached)
}

func TestListCoalescesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	m := &mockAPI{}
	m.On("ListDirectory", mock.Anything, "/ns").
		Run(func(mock.Arguments) { <-release }).
		Return(listing("/ns", "a.wav"), nil)
	mgr := NewManager(m)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Refetch(context.Background(), "/ns")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, len(m.Calls), 2)
}

func TestDeleteRefetchesExactlyOnce(t *testing.T) {
	for _, deleteErr := range []error{nil, errors.New("backend down")} {
		m := &mockAPI{}
		paths := []string{"/ns/a.wav", "/ns/b.wav"}
		m.On("DeletePaths", mock.Anything, paths).Return(deleteErr).Once()
		m.On("ListDirectory", mock.Anything, "/ns").Return(listing("/ns"), nil)
		mgr := NewManager(m)

		err := mgr.DeleteMany(context.Background(), "/ns", paths)
		if deleteErr != nil {
			assert.ErrorIs(t, err, deleteErr)
		} else {
			assert.NoError(t, err)
		}
		m.AssertNumberOfCalls(t, "ListDirectory", 1)
		assert.False(t, mgr.Busy())
	}
}

func TestCreateFolderAndUpload(t *testing.T) {
	m := &mockAPI{}
	m.On("CreateDirectory", mock.Anything, "/ns/raw").Return(nil)
	m.On("UploadFile", mock.Anything, api.NewUploadRequest("/ns", "a.wav", []byte("x"))).Return(nil)
	m.On("ListDirectory", mock.Anything, "/ns").Return(listing("/ns", "a.wav"), nil)
	tt := &toasts{}
	mgr := NewManager(m, WithNotifier(tt))

	require.NoError(t, mgr.CreateFolder(context.Background(), "/ns", "raw"))
	require.NoError(t, mgr.Upload(context.Background(), "/ns", "a.wav", []byte("x")))
	m.AssertNumberOfCalls(t, "ListDirectory", 2)
	assert.Equal(t, []string{"Created folder raw", "Uploaded a.wav"}, tt.msgs)

	assert.Error(t, mgr.CreateFolder(context.Background(), "/ns", "a/b"))
}

func TestBreadcrumbRoundTrip(t *testing.T) {
	for _, p := range []string{"/data/ns", "/data/ns/a", "/data/ns/a/b/c"} {
		nav := NewNavigator("/data/ns")
		require.True(t, nav.SetPath(p))
		crumbs := nav.Breadcrumbs()
		assert.Equal(t, p, crumbs[len(crumbs)-1].Path)

		for i := range crumbs {
			nav.SetPath(p)
			nav.GoTo(i)
			assert.Equal(t, crumbs[i].Path, nav.Path())
			assert.Equal(t, crumbs[:i+1], nav.Breadcrumbs())
		}
	}
}

func TestNavigatorOpenAndUp(t *testing.T) {
	nav := NewNavigator("/ns")
	nav.Selection().Toggle("/ns/x")

	preview := nav.Open(models.NewFolderItem("/ns", "raw", time.Now()))
	assert.False(t, preview)
	assert.Equal(t, "/ns/raw", nav.Path())
	assert.Zero(t, nav.Selection().Len())

	preview = nav.Open(models.NewFileItem("/ns/raw", "a.wav", 1, time.Now()))
	assert.True(t, preview)
	assert.Equal(t, "/ns/raw", nav.Path())

	assert.True(t, nav.Up())
	assert.False(t, nav.Up())
	assert.False(t, nav.SetPath("/elsewhere"))
}

func TestSelection(t *testing.T) {
	s := NewSelection()
	assert.True(t, s.Toggle("/b"))
	assert.True(t, s.Toggle("/a"))
	assert.False(t, s.Toggle("/b"))
	assert.Equal(t, []string{"/a"}, s.Paths())
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, PreviewImage, KindFor("cover.JPEG"))
	assert.Equal(t, PreviewAudio, KindFor("take.Wav"))
	assert.Equal(t, PreviewText, KindFor("notes.md"))
	assert.Equal(t, PreviewNone, KindFor("model.ckpt"))
	assert.Equal(t, PreviewNone, KindFor("Makefile"))
}

type fakeBlobs struct {
	created int
	err     error
}

func (f *fakeBlobs) Create(data []byte, ext string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created++
	return "blob:test" + ext, nil
}

func TestPreviewer(t *testing.T) {
	var img bytes.Buffer
	canvas := image.NewRGBA(image.Rect(0, 0, 3, 2))
	canvas.Set(0, 0, color.White)
	require.NoError(t, png.Encode(&img, canvas))

	m := &mockAPI{}
	m.On("DownloadFile", mock.Anything, "/ns/a.txt").Return([]byte("hello"), nil)
	m.On("DownloadFile", mock.Anything, "/ns/a.wav").Return([]byte("RIFF"), nil)
	m.On("DownloadFile", mock.Anything, "/ns/a.png").Return(img.Bytes(), nil)
	m.On("DownloadFile", mock.Anything, "/ns/b.png").Return([]byte("garbage"), nil)
	m.On("DownloadFile", mock.Anything, "/ns/c.txt").Return(nil, errors.New("gone"))

	blobs := &fakeBlobs{}
	pv := NewPreviewer(NewManager(m), blobs)
	ctx := context.Background()

	text := pv.Load(ctx, "/ns/a.txt")
	assert.Equal(t, PreviewText, text.Kind)
	assert.Equal(t, "hello", text.Text)

	audio := pv.Load(ctx, "/ns/a.wav")
	assert.Equal(t, "blob:test.wav", audio.AudioURL)

	pic := pv.Load(ctx, "/ns/a.png")
	assert.Equal(t, 3, pic.Width)
	assert.Equal(t, 2, pic.Height)

	bad := pv.Load(ctx, "/ns/b.png")
	assert.Equal(t, PreviewImage, bad.Kind)
	assert.NotEmpty(t, bad.Placeholder)

	failed := pv.Load(ctx, "/ns/c.txt")
	assert.Equal(t, PreviewNone, failed.Kind)
	assert.Contains(t, failed.Placeholder, "gone")

	none := pv.Load(ctx, "/ns/model.ckpt")
	assert.Equal(t, PreviewNone, none.Kind)
	m.AssertNotCalled(t, "DownloadFile", mock.Anything, "/ns/model.ckpt")
}

func TestSVGSize(t *testing.T) {
	w, h, err := imageSize("a.svg", []byte(`<svg xmlns="x" width="120px" height="80">`))
	require.NoError(t, err)
	assert.Equal(t, 120, w)
	assert.Equal(t, 80, h)
}

func TestMalformedSVGSizeFallsBackToPlaceholder(t *testing.T) {
	for name, doc := range map[string]string{
		"overflow": `<svg width="99999999999999999999999" height="80">`,
		"zero":     `<svg width="0" height="80">`,
	} {
		_, _, err := imageSize("a.svg", []byte(doc))
		assert.Error(t, err, name)
	}

	m := &mockAPI{}
	m.On("DownloadFile", mock.Anything, "/ns/logo.svg").Return([]byte(`<svg width="0" height="0"/>`), nil)
	pv := NewPreviewer(NewManager(m), &fakeBlobs{})

	logo := pv.Load(context.Background(), "/ns/logo.svg")
	assert.Equal(t, PreviewImage, logo.Kind)
	assert.Equal(t, "svg image, 27 bytes", logo.Placeholder)
	assert.Zero(t, logo.Width)
}
