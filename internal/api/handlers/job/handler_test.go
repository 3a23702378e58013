package job

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/model"
	"github.com/aliskhannn/imageforge/internal/service/batch"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

type fakeService struct {
	jobs map[uuid.UUID]model.ProcessingJob
}

func (f *fakeService) Submit(_ context.Context, archivePaths []string, _ int) (model.ProcessingJob, error) {
	return model.ProcessingJob{ID: uuid.New(), Status: model.StatusPending}, nil
}

func (f *fakeService) Job(id uuid.UUID) (model.ProcessingJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return model.ProcessingJob{}, batch.ErrJobNotFound
	}
	return job, nil
}

type fakeBridge struct{}

func (fakeBridge) Serve(http.ResponseWriter, *http.Request, uuid.UUID) {}

type fakeStore struct {
	content string
	loadErr error

	loaded  []string
	deleted []string
}

func (f *fakeStore) Load(_ context.Context, path string) (io.ReadCloser, error) {
	f.loaded = append(f.loaded, path)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func (f *fakeStore) Delete(_ context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func newTestRouter(svc *fakeService, store *fakeStore) *ginext.Engine {
	var h *Handler
	if store != nil {
		h = NewHandler(svc, fakeBridge{}, store)
	} else {
		h = NewHandler(svc, fakeBridge{}, nil)
	}

	r := ginext.New()
	r.GET("/api/jobs/:id/archive", h.Archive)
	r.DELETE("/api/jobs/:id/archive", h.Purge)
	return r
}

func do(t *testing.T, r *ginext.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func completedJob(t *testing.T, content string) model.ProcessingJob {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.zip")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return model.ProcessingJob{
		ID:          uuid.New(),
		Status:      model.StatusCompleted,
		Progress:    100,
		ArchivePath: path,
	}
}

func TestArchiveServesLocalFile(t *testing.T) {
	job := completedJob(t, "local-zip-bytes")
	svc := &fakeService{jobs: map[uuid.UUID]model.ProcessingJob{job.ID: job}}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodGet, "/api/jobs/"+job.ID.String()+"/archive")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "local-zip-bytes" {
		t.Fatalf("body = %q, want the archive bytes", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q, want application/zip", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "batch.zip") {
		t.Fatalf("content disposition = %q, want the archive name", cd)
	}
}

func TestArchiveFallsBackToObjectStorage(t *testing.T) {
	job := completedJob(t, "gone")
	if err := os.Remove(job.ArchivePath); err != nil {
		t.Fatalf("remove local archive: %v", err)
	}
	job.ObjectPath = "archives/batch.zip"

	svc := &fakeService{jobs: map[uuid.UUID]model.ProcessingJob{job.ID: job}}
	store := &fakeStore{content: "stored-zip-bytes"}
	r := newTestRouter(svc, store)

	w := do(t, r, http.MethodGet, "/api/jobs/"+job.ID.String()+"/archive")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "stored-zip-bytes" {
		t.Fatalf("body = %q, want the stored archive bytes", got)
	}
	if len(store.loaded) != 1 || store.loaded[0] != "archives/batch.zip" {
		t.Fatalf("store loads = %v, want the job's object path", store.loaded)
	}
}

func TestArchiveMissingEverywhere(t *testing.T) {
	job := completedJob(t, "gone")
	if err := os.Remove(job.ArchivePath); err != nil {
		t.Fatalf("remove local archive: %v", err)
	}

	svc := &fakeService{jobs: map[uuid.UUID]model.ProcessingJob{job.ID: job}}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodGet, "/api/jobs/"+job.ID.String()+"/archive")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 without any copy to serve", w.Code)
	}
}

func TestArchiveNotCompleted(t *testing.T) {
	job := model.ProcessingJob{ID: uuid.New(), Status: model.StatusRunning}
	svc := &fakeService{jobs: map[uuid.UUID]model.ProcessingJob{job.ID: job}}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodGet, "/api/jobs/"+job.ID.String()+"/archive")

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for a running job", w.Code)
	}
}

func TestPurgeRemovesLocalAndStored(t *testing.T) {
	job := completedJob(t, "purge-me")
	job.ObjectPath = "archives/batch.zip"

	svc := &fakeService{jobs: map[uuid.UUID]model.ProcessingJob{job.ID: job}}
	store := &fakeStore{}
	r := newTestRouter(svc, store)

	w := do(t, r, http.MethodDelete, "/api/jobs/"+job.ID.String()+"/archive")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, err := os.Stat(job.ArchivePath); !os.IsNotExist(err) {
		t.Fatal("local archive still present after purge")
	}
	if len(store.deleted) != 1 || store.deleted[0] != "archives/batch.zip" {
		t.Fatalf("store deletes = %v, want the job's object path", store.deleted)
	}
}

func TestPurgeToleratesMissingLocalFile(t *testing.T) {
	job := completedJob(t, "gone")
	if err := os.Remove(job.ArchivePath); err != nil {
		t.Fatalf("remove local archive: %v", err)
	}

	svc := &fakeService{jobs: map[uuid.UUID]model.ProcessingJob{job.ID: job}}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodDelete, "/api/jobs/"+job.ID.String()+"/archive")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when the file is already gone", w.Code)
	}
}

func TestPurgeUnknownJob(t *testing.T) {
	svc := &fakeService{jobs: map[uuid.UUID]model.ProcessingJob{}}
	r := newTestRouter(svc, nil)

	w := do(t, r, http.MethodDelete, "/api/jobs/"+uuid.NewString()+"/archive")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
