package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Lllllllleong/docsynth/internal/backend"
	"github.com/Lllllllleong/docsynth/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpload struct {
	URL         string
	ContentType string
	Body        string
	Size        int64
}

type fakeBackend struct {
	createErr   error
	response    *models.CreateRequestResponse
	uploadErrs  map[string]error
	completeErr error
	beforePut   func(url string)

	payload   models.CreateRequestPayload
	uploads   []fakeUpload
	completed []string
}

func (f *fakeBackend) CreateRequestWithUploadURLs(_ context.Context, payload models.CreateRequestPayload) (*models.CreateRequestResponse, error) {
	f.payload = payload
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.response != nil {
		return f.response, nil
	}
	resp := &models.CreateRequestResponse{RequestID: "req-1"}
	for _, n := range payload.SeedFiles {
		resp.Uploads.SeedDocs = append(resp.Uploads.SeedDocs, models.UploadTarget{FileName: n, Path: "seed/" + n, UploadURL: "put://seed/" + n})
	}
	for _, n := range payload.VisualFiles {
		resp.Uploads.VisualAssets = append(resp.Uploads.VisualAssets, models.UploadTarget{FileName: n, Path: "visual/" + n, UploadURL: "put://visual/" + n})
	}
	return resp, nil
}

func (f *fakeBackend) UploadToSignedURL(_ context.Context, uploadURL, contentType string, body io.Reader, size int64) error {
	if f.beforePut != nil {
		f.beforePut(uploadURL)
	}
	if err := f.uploadErrs[uploadURL]; err != nil {
		return err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads = append(f.uploads, fakeUpload{URL: uploadURL, ContentType: contentType, Body: string(b), Size: size})
	return nil
}

func (f *fakeBackend) CompleteRequest(_ context.Context, requestID string) error {
	f.completed = append(f.completed, requestID)
	return f.completeErr
}

type journalEntry struct {
	Status   string
	Uploaded int
}

type memoryJournal struct {
	mu       sync.Mutex
	created  []models.SubmissionRecord
	entries  []journalEntry
	failures []string
	err      error
}

func (j *memoryJournal) RecordCreated(_ context.Context, rec models.SubmissionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.created = append(j.created, rec)
	return j.err
}

func (j *memoryJournal) RecordProgress(_ context.Context, _ string, status string, uploaded int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{Status: status, Uploaded: uploaded})
	return j.err
}

func (j *memoryJournal) RecordFailure(_ context.Context, _ string, uploaded int, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{Status: models.StatusFailed, Uploaded: uploaded})
	j.failures = append(j.failures, cause.Error())
	return j.err
}

type event struct {
	Phase models.Phase
	Index int
	Name  string
}

type recorder struct {
	states []models.UploadProgressState
}

func (r *recorder) record(s models.UploadProgressState) { r.states = append(r.states, s) }

func (r *recorder) events() []event {
	out := make([]event, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, event{Phase: s.Phase, Index: s.CurrentFileIndex, Name: s.CurrentFileName})
	}
	return out
}

func files(prefix string, names ...string) []SourceFile {
	out := make([]SourceFile, len(names))
	for i, n := range names {
		out[i] = FileFromBytes(n, "application/octet-stream", []byte(prefix+":"+n))
	}
	return out
}

func newTestSequencer(b GenerationBackend, j SubmissionJournal) *Sequencer {
	s := NewSequencer(b, j)
	s.newKey = func() string { return "idem-1" }
	return s
}

func TestStartGenerationFlowEventSequence(t *testing.T) {
	fb := &fakeBackend{}
	rec := &recorder{}
	s := newTestSequencer(fb, nil)

	res, err := s.StartGenerationFlow(context.Background(), GenerationRequest{
		UserID:      "u-1",
		SeedFiles:   files("seed", "a.pdf", "b.pdf"),
		VisualFiles: files("visual", "logo.png"),
		Metadata:    models.GenerationMetadata{DocumentName: "Lease", NumSolutions: 2},
	}, rec.record)
	require.NoError(t, err)

	want := []event{
		{models.PhaseSeed, 0, "a.pdf"},
		{models.PhaseSeed, 1, "b.pdf"},
		{models.PhaseVisual, 2, "logo.png"},
		{models.PhaseCompleting, 3, ""},
		{models.PhaseDone, 3, ""},
	}
	if diff := cmp.Diff(want, rec.events()); diff != "" {
		t.Fatalf("progress events mismatch (-want +got):\n%s", diff)
	}
	for _, st := range rec.states {
		assert.Equal(t, 3, st.TotalFiles)
		assert.Equal(t, []string{"a.pdf", "b.pdf"}, st.SeedFiles)
		assert.Equal(t, []string{"logo.png"}, st.VisualFiles)
	}

	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "idem-1", res.IdempotencyKey)
	assert.Len(t, res.Uploads.SeedDocs, 2)
	assert.Len(t, res.Uploads.VisualAssets, 1)

	assert.Equal(t, []string{"a.pdf", "b.pdf"}, fb.payload.SeedFiles)
	assert.Equal(t, []string{"logo.png"}, fb.payload.VisualFiles)
	assert.Equal(t, "idem-1", fb.payload.IdempotencyKey)
	assert.Equal(t, "Lease", fb.payload.Metadata.DocumentName)

	require.Len(t, fb.uploads, 3)
	assert.Equal(t, fakeUpload{URL: "put://seed/a.pdf", ContentType: "application/octet-stream", Body: "seed:a.pdf", Size: 10}, fb.uploads[0])
	assert.Equal(t, "put://seed/b.pdf", fb.uploads[1].URL)
	assert.Equal(t, "put://visual/logo.png", fb.uploads[2].URL)
	assert.Equal(t, []string{"req-1"}, fb.completed)
}

func TestStartGenerationFlowCounts(t *testing.T) {
	for s := 0; s <= 3; s++ {
		for v := 0; v <= 3; v++ {
			t.Run(fmt.Sprintf("seed=%d/visual=%d", s, v), func(t *testing.T) {
				seed := make([]SourceFile, s)
				for i := range seed {
					seed[i] = FileFromBytes(fmt.Sprintf("s%d.pdf", i), "application/pdf", []byte("x"))
				}
				visual := make([]SourceFile, v)
				for i := range visual {
					visual[i] = FileFromBytes(fmt.Sprintf("v%d.png", i), "image/png", []byte("y"))
				}

				rec := &recorder{}
				_, err := newTestSequencer(&fakeBackend{}, nil).StartGenerationFlow(context.Background(),
					GenerationRequest{UserID: "u", SeedFiles: seed, VisualFiles: visual}, rec.record)
				require.NoError(t, err)

				var want []event
				for i := 0; i < s; i++ {
					want = append(want, event{models.PhaseSeed, i, seed[i].Name})
				}
				for i := 0; i < v; i++ {
					want = append(want, event{models.PhaseVisual, s + i, visual[i].Name})
				}
				want = append(want, event{models.PhaseCompleting, s + v, ""}, event{models.PhaseDone, s + v, ""})
				if diff := cmp.Diff(want, rec.events()); diff != "" {
					t.Fatalf("progress events mismatch (-want +got):\n%s", diff)
				}

				last := -1
				for _, st := range rec.states {
					assert.Equal(t, s+v, st.TotalFiles)
					assert.GreaterOrEqual(t, st.CurrentFileIndex, last)
					last = st.CurrentFileIndex
				}
			})
		}
	}
}

func TestStartGenerationFlowNoFiles(t *testing.T) {
	rec := &recorder{}
	fb := &fakeBackend{}
	_, err := newTestSequencer(fb, nil).StartGenerationFlow(context.Background(), GenerationRequest{UserID: "u"}, rec.record)
	require.NoError(t, err)

	require.Len(t, rec.states, 2)
	for _, st := range rec.states {
		assert.Equal(t, 0, st.TotalFiles)
		assert.Equal(t, float64(0), st.Percent())
	}
	assert.Empty(t, fb.uploads)
	assert.Equal(t, []string{"req-1"}, fb.completed)
}

func TestStartGenerationFlowNilProgress(t *testing.T) {
	_, err := newTestSequencer(&fakeBackend{}, nil).StartGenerationFlow(context.Background(),
		GenerationRequest{UserID: "u", SeedFiles: files("s", "a.pdf")}, nil)
	require.NoError(t, err)
}

func TestStartGenerationFlowCreateFails(t *testing.T) {
	fb := &fakeBackend{createErr: &backend.APIError{Op: "create request", StatusCode: 400, Message: "quota exceeded"}}
	j := &memoryJournal{}
	rec := &recorder{}

	_, err := newTestSequencer(fb, j).StartGenerationFlow(context.Background(),
		GenerationRequest{UserID: "u", SeedFiles: files("s", "a.pdf")}, rec.record)

	var createErr *RequestCreationError
	require.True(t, errors.As(err, &createErr))
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "quota exceeded", apiErr.Message)

	assert.Empty(t, rec.states)
	assert.Empty(t, fb.uploads)
	assert.Empty(t, fb.completed)
	assert.Empty(t, j.created)
	assert.Empty(t, j.entries)
}

func TestStartGenerationFlowDescriptorMismatch(t *testing.T) {
	fb := &fakeBackend{response: &models.CreateRequestResponse{
		RequestID: "req-x",
		Uploads:   models.UploadSet{SeedDocs: []models.UploadTarget{{FileName: "a.pdf", UploadURL: "put://a"}}},
	}}
	j := &memoryJournal{}
	rec := &recorder{}

	_, err := newTestSequencer(fb, j).StartGenerationFlow(context.Background(),
		GenerationRequest{UserID: "u", SeedFiles: files("s", "a.pdf", "b.pdf")}, rec.record)

	var createErr *RequestCreationError
	require.True(t, errors.As(err, &createErr))
	assert.ErrorIs(t, err, ErrUploadCountMismatch)
	assert.Empty(t, rec.states)
	assert.Empty(t, fb.uploads)
	assert.Equal(t, []journalEntry{{models.StatusFailed, 0}}, j.entries)
}

func TestStartGenerationFlowMissingRequestID(t *testing.T) {
	fb := &fakeBackend{response: &models.CreateRequestResponse{
		Uploads: models.UploadSet{SeedDocs: []models.UploadTarget{{FileName: "a.pdf", UploadURL: "put://a"}}},
	}}
	j := &memoryJournal{}
	rec := &recorder{}

	_, err := newTestSequencer(fb, j).StartGenerationFlow(context.Background(),
		GenerationRequest{UserID: "u", SeedFiles: files("s", "a.pdf")}, rec.record)

	var createErr *RequestCreationError
	require.True(t, errors.As(err, &createErr))
	assert.ErrorIs(t, err, ErrMissingRequestID)
	assert.Empty(t, rec.states)
	assert.Empty(t, fb.uploads)
	assert.Empty(t, fb.completed)
	assert.Empty(t, j.created)
	assert.Empty(t, j.entries)
}

func TestStartGenerationFlowSeedUploadFails(t *testing.T) {
	rec := &recorder{}
	fb := &fakeBackend{uploadErrs: map[string]error{"put://seed/b.pdf": errors.New("403 Forbidden")}}
	fb.beforePut = func(url string) {
		// the event for a file is emitted before its transfer starts
		last := rec.states[len(rec.states)-1]
		assert.True(t, strings.HasSuffix(url, "/"+last.CurrentFileName))
	}
	j := &memoryJournal{}

	_, err := newTestSequencer(fb, j).StartGenerationFlow(context.Background(), GenerationRequest{
		UserID:      "u",
		SeedFiles:   files("s", "a.pdf", "b.pdf", "c.pdf"),
		VisualFiles: files("v", "logo.png"),
	}, rec.record)

	var upErr *FileUploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "b.pdf", upErr.FileName)
	assert.Equal(t, models.PhaseSeed, upErr.Phase)
	assert.Equal(t, 1, upErr.Index)
	assert.Equal(t, "req-1", upErr.RequestID)
	assert.Contains(t, err.Error(), "b.pdf")

	want := []event{
		{models.PhaseSeed, 0, "a.pdf"},
		{models.PhaseSeed, 1, "b.pdf"},
	}
	if diff := cmp.Diff(want, rec.events()); diff != "" {
		t.Fatalf("progress events mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, fb.uploads, 1)
	assert.Empty(t, fb.completed)
	assert.Equal(t, []journalEntry{
		{models.StatusUploading, 1},
		{models.StatusFailed, 1},
	}, j.entries)
}

func TestStartGenerationFlowVisualUploadFails(t *testing.T) {
	rec := &recorder{}
	fb := &fakeBackend{uploadErrs: map[string]error{"put://visual/stamp.png": errors.New("timeout")}}

	_, err := newTestSequencer(fb, nil).StartGenerationFlow(context.Background(), GenerationRequest{
		UserID:      "u",
		SeedFiles:   files("s", "a.pdf"),
		VisualFiles: files("v", "logo.png", "stamp.png"),
	}, rec.record)

	var upErr *FileUploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "stamp.png", upErr.FileName)
	assert.Equal(t, models.PhaseVisual, upErr.Phase)
	assert.Equal(t, 1, upErr.Index)

	want := []event{
		{models.PhaseSeed, 0, "a.pdf"},
		{models.PhaseVisual, 1, "logo.png"},
		{models.PhaseVisual, 2, "stamp.png"},
	}
	if diff := cmp.Diff(want, rec.events()); diff != "" {
		t.Fatalf("progress events mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, fb.completed)
}

func TestStartGenerationFlowOpenFails(t *testing.T) {
	broken := SourceFile{Name: "gone.pdf", Open: func() (io.ReadCloser, error) { return nil, errors.New("file vanished") }}
	fb := &fakeBackend{}

	_, err := newTestSequencer(fb, nil).StartGenerationFlow(context.Background(),
		GenerationRequest{UserID: "u", SeedFiles: []SourceFile{broken}}, nil)

	var upErr *FileUploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "gone.pdf", upErr.FileName)
	assert.Empty(t, fb.uploads)
	assert.Empty(t, fb.completed)
}

func TestStartGenerationFlowCompletionFails(t *testing.T) {
	rec := &recorder{}
	fb := &fakeBackend{completeErr: errors.New("503")}
	j := &memoryJournal{}

	_, err := newTestSequencer(fb, j).StartGenerationFlow(context.Background(),
		GenerationRequest{UserID: "u", SeedFiles: files("s", "a.pdf")}, rec.record)

	var compErr *CompletionError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, "req-1", compErr.RequestID)

	want := []event{
		{models.PhaseSeed, 0, "a.pdf"},
		{models.PhaseCompleting, 1, ""},
	}
	if diff := cmp.Diff(want, rec.events()); diff != "" {
		t.Fatalf("progress events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, models.StatusFailed, j.entries[len(j.entries)-1].Status)
}

func TestStartGenerationFlowJournal(t *testing.T) {
	j := &memoryJournal{}
	_, err := newTestSequencer(&fakeBackend{}, j).StartGenerationFlow(context.Background(), GenerationRequest{
		UserID:      "u-7",
		SeedFiles:   files("s", "a.pdf"),
		VisualFiles: files("v", "logo.png"),
		Metadata:    models.GenerationMetadata{DocumentName: "Report"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, j.created, 1)
	assert.Equal(t, "req-1", j.created[0].RequestID)
	assert.Equal(t, "u-7", j.created[0].UserID)
	assert.Equal(t, "Report", j.created[0].DocumentName)
	assert.Equal(t, "idem-1", j.created[0].IdempotencyKey)
	assert.Equal(t, 2, j.created[0].TotalFiles)
	assert.Equal(t, []journalEntry{
		{models.StatusUploading, 1},
		{models.StatusUploading, 2},
		{models.StatusCompleting, 2},
		{models.StatusCompleted, 2},
	}, j.entries)
}

func TestStartGenerationFlowJournalErrorsDoNotFailFlow(t *testing.T) {
	j := &memoryJournal{err: errors.New("firestore unavailable")}
	res, err := newTestSequencer(&fakeBackend{}, j).StartGenerationFlow(context.Background(),
		GenerationRequest{UserID: "u", SeedFiles: files("s", "a.pdf")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)
}

// TestStartGenerationFlowOverHTTP runs the sequencer against the real REST
// client, with one server acting as both backend and storage.
func TestStartGenerationFlowOverHTTP(t *testing.T) {
	var mu sync.Mutex
	var order []string
	stored := map[string]string{}

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/requests/create-with-urls", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, "create")
		mu.Unlock()
		assert.NotEmpty(t, r.Header.Get(backend.IdempotencyHeader))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"requestId":"r-77","uploads":{"seedDocs":[{"fileName":"a.pdf","path":"gs://b/a.pdf","uploadUrl":"%[1]s/put/a.pdf"}],"visualAssets":[{"fileName":"logo.png","path":"gs://b/logo.png","uploadUrl":"%[1]s/put/logo.png"}]}}`, srv.URL)
	})
	mux.HandleFunc("/put/", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "put "+r.URL.Path)
		stored[r.URL.Path] = r.Header.Get("Content-Type") + "|" + string(b)
	})
	mux.HandleFunc("/requests/r-77/complete", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, "complete")
		mu.Unlock()
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client, err := backend.NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	res, err := NewSequencer(client, nil).StartGenerationFlow(context.Background(), GenerationRequest{
		UserID:      "u",
		SeedFiles:   []SourceFile{FileFromBytes("a.pdf", "application/pdf", []byte("%PDF"))},
		VisualFiles: []SourceFile{FileFromBytes("logo.png", "image/png", []byte("PNG"))},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "r-77", res.RequestID)
	assert.NotEmpty(t, res.IdempotencyKey)

	assert.Equal(t, []string{"create", "put /put/a.pdf", "put /put/logo.png", "complete"}, order)
	assert.Equal(t, "application/pdf|%PDF", stored["/put/a.pdf"])
	assert.Equal(t, "image/png|PNG", stored["/put/logo.png"])
}
