package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JoacoLucen/EPH-Insight-App/internal/adapters/storage"
	"github.com/JoacoLucen/EPH-Insight-App/internal/analytics"
	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/events"
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/repository"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/transport"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/internal/scheduler"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

type fakeRepo struct {
	runs map[uuid.UUID]repository.Run
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{runs: map[uuid.UUID]repository.Run{}}
}

func (r *fakeRepo) Create(_ context.Context, id uuid.UUID, trigger, status string) (repository.Run, error) {
	run := repository.Run{ID: id, Trigger: trigger, Status: status, StartedAt: time.Now()}
	r.runs[id] = run
	return run, nil
}

func (r *fakeRepo) MarkRunning(_ context.Context, id uuid.UUID) error {
	run, ok := r.runs[id]
	if !ok {
		return apperr.NotFound("ingestion run not found")
	}
	run.Status = repository.StatusRunning
	r.runs[id] = run
	return nil
}

func (r *fakeRepo) Finish(_ context.Context, p repository.FinishParams) error {
	run, ok := r.runs[p.ID]
	if !ok {
		return apperr.NotFound("ingestion run not found")
	}
	run.Status = p.Status
	run.Individuals = p.Individuals
	run.Households = p.Households
	run.Periods = p.Periods
	run.Exclusions = p.Exclusions
	if p.Fingerprint != "" {
		fp := p.Fingerprint
		run.Fingerprint = &fp
	}
	if p.Error != "" {
		msg := p.Error
		run.Error = &msg
	}
	r.runs[p.ID] = run
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Run, error) {
	run, ok := r.runs[id]
	if !ok {
		return repository.Run{}, apperr.NotFound("ingestion run not found")
	}
	return run, nil
}

func (r *fakeRepo) List(context.Context, int, int) ([]repository.Run, int, error) {
	out := make([]repository.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	return out, len(out), nil
}

type fakeStore struct {
	snap    *dataset.Snapshot
	err     error
	reloads int
}

func (s *fakeStore) Current() (*dataset.Snapshot, error) {
	if s.snap == nil {
		return nil, apperr.Unavailable("dataset not loaded yet")
	}
	return s.snap, nil
}

func (s *fakeStore) Reload(context.Context) (*dataset.Snapshot, error) {
	s.reloads++
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

type fakeEnqueuer struct {
	payloads []scheduler.ReloadPayload
}

func (e *fakeEnqueuer) EnqueueReload(_ context.Context, payload scheduler.ReloadPayload) error {
	e.payloads = append(e.payloads, payload)
	return nil
}

type recordingBus struct {
	names []string
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) { b.names = append(b.names, event.EventName()) }
func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.names = append(b.names, event.EventName())
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

type fakeStorage struct {
	objects map[string]int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]int64{}}
}

func (s *fakeStorage) GenerateUploadURL(_ context.Context, bucket, folder, fileName, _ string, _ int64) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.local/" + bucket, FileKey: folder + "/" + fileName, ExpiresAt: time.Now().Add(time.Minute)}, nil
}
func (s *fakeStorage) GenerateDownloadURL(_ context.Context, bucket, fileKey string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.local/" + bucket + "/" + fileKey, FileKey: fileKey}, nil
}
func (s *fakeStorage) DownloadFile(context.Context, string, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (s *fakeStorage) StatObject(_ context.Context, bucket, fileKey string) (storage.ObjectInfo, error) {
	size, ok := s.objects[bucket+"/"+fileKey]
	if !ok {
		return storage.ObjectInfo{}, apperr.SourceMissing(bucket+"/"+fileKey, errors.New("no such key"))
	}
	return storage.ObjectInfo{Key: fileKey, Size: size}, nil
}
func (s *fakeStorage) ListObjects(_ context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for key, size := range s.objects {
		name, ok := strings.CutPrefix(key, bucket+"/")
		if ok && strings.HasPrefix(name, prefix) {
			out = append(out, storage.ObjectInfo{Key: name, Size: size})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
func (s *fakeStorage) DeleteObject(_ context.Context, bucket, fileKey string) error {
	delete(s.objects, bucket+"/"+fileKey)
	return nil
}
func (s *fakeStorage) UploadFile(_ context.Context, bucket, folder, fileName, _ string, reader io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	key := folder + "/" + fileName
	s.objects[bucket+"/"+key] = int64(len(data))
	return key, nil
}
func (s *fakeStorage) PutObject(_ context.Context, bucket, fileKey, _ string, reader io.Reader, _ int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[bucket+"/"+fileKey] = int64(len(data))
	return nil
}
func (s *fakeStorage) EnsureBucketExists(context.Context, string) error { return nil }
func (s *fakeStorage) ValidateContentType(contentType string) error {
	if contentType != storage.ContentTypeZip && contentType != storage.ContentTypeText {
		return errors.New("content type not allowed")
	}
	return nil
}
func (s *fakeStorage) ValidateFileSize(size int64) error {
	if size > 1024 {
		return errors.New("file too large")
	}
	return nil
}
func (s *fakeStorage) GetMaxFileSize() int64 { return 1024 }

var testBuckets = Buckets{Extracts: "eph-extracts", ExtractsPrefix: dataset.ExtractsPrefix, Normalized: "eph-normalized"}

func testSnapshot(t *testing.T) *dataset.Snapshot {
	t.Helper()
	cb, err := codebook.Default()
	if err != nil {
		t.Fatalf("load codebook: %v", err)
	}
	rec, reason := microdata.NewRecord(map[string]string{
		"CODUSU": "TQRMNOQ", "NRO_HOGAR": "1", "ANO4": "2024", "TRIMESTRE": "1",
		"AGLOMERADO": "32", "PONDERA": "150", "IX_TOT": "2", "IV4": "1",
	})
	if reason != "" {
		t.Fatalf("unexpected exclusion %q", reason)
	}
	ds := microdata.NewDataset()
	ds.Households = []microdata.Household{{Record: rec}}
	ds.Individuals = []microdata.Individual{{Record: rec}}
	indicators.Derive(ds)
	return &dataset.Snapshot{Fingerprint: "4f2a9c", LoadedAt: time.Now(), Dataset: ds, Engine: analytics.New(ds, cb)}
}

func TestTriggerReload_InlineRecordsSucceededRun(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStore{snap: testSnapshot(t)}
	bus := &recordingBus{}
	svc := New(store, repo, nil, testBuckets, bus, logger.Discard())

	run, err := svc.TriggerReload(context.Background(), scheduler.TriggerManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != repository.StatusSucceeded {
		t.Fatalf("expected succeeded run, got %s", run.Status)
	}
	if run.Households != 1 || len(run.Periods) != 1 || run.Periods[0] != "2024-T1" {
		t.Fatalf("unexpected run counts: %+v", run)
	}
	if run.Fingerprint == nil || *run.Fingerprint != "4f2a9c" {
		t.Fatalf("expected fingerprint 4f2a9c, got %v", run.Fingerprint)
	}
	if len(bus.names) != 1 || bus.names[0] != (events.IngestionCompleted{}).EventName() {
		t.Fatalf("expected ingestion completed event, got %v", bus.names)
	}
}

func TestTriggerReload_EnqueuesWhenSchedulerConfigured(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStore{snap: testSnapshot(t)}
	enqueuer := &fakeEnqueuer{}
	svc := New(store, repo, nil, testBuckets, nil, logger.Discard())
	svc.SetReloadEnqueuer(enqueuer)

	run, err := svc.TriggerReload(context.Background(), scheduler.TriggerManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != repository.StatusQueued {
		t.Fatalf("expected queued run, got %s", run.Status)
	}
	if store.reloads != 0 {
		t.Fatalf("expected no inline reload, got %d", store.reloads)
	}
	if len(enqueuer.payloads) != 1 || enqueuer.payloads[0].RunID != run.ID.String() {
		t.Fatalf("expected payload for run %s, got %+v", run.ID, enqueuer.payloads)
	}

	if err := svc.ProcessReload(context.Background(), enqueuer.payloads[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.runs[run.ID].Status; got != repository.StatusSucceeded {
		t.Fatalf("expected worker to finish the queued run, got %s", got)
	}
}

func TestProcessReload_FailureIsRecorded(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStore{err: apperr.SourceMissing("data", errors.New("no survey extracts found"))}
	bus := &recordingBus{}
	svc := New(store, repo, nil, testBuckets, bus, logger.Discard())

	err := svc.ProcessReload(context.Background(), scheduler.ReloadPayload{Trigger: scheduler.TriggerWatcher})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected source missing error, got %v", err)
	}
	if len(repo.runs) != 1 {
		t.Fatalf("expected one run, got %d", len(repo.runs))
	}
	for _, run := range repo.runs {
		if run.Status != repository.StatusFailed || run.Error == nil {
			t.Fatalf("expected failed run with error, got %+v", run)
		}
		if run.Trigger != scheduler.TriggerWatcher {
			t.Fatalf("expected watcher trigger, got %s", run.Trigger)
		}
	}
	if len(bus.names) != 1 || bus.names[0] != (events.IngestionFailed{}).EventName() {
		t.Fatalf("expected ingestion failed event, got %v", bus.names)
	}
}

func TestUpload_RejectsNonSurveyFiles(t *testing.T) {
	svc := New(&fakeStore{}, newFakeRepo(), newFakeStorage(), testBuckets, nil, logger.Discard())

	_, err := svc.Upload(context.Background(), UploadInput{
		FileName:    "notas.pdf",
		ContentType: storage.ContentTypeZip,
		Size:        10,
		Body:        strings.NewReader("pdf"),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpload_WithoutStorageIsUnavailable(t *testing.T) {
	svc := New(&fakeStore{}, newFakeRepo(), nil, testBuckets, nil, logger.Discard())

	_, err := svc.Upload(context.Background(), UploadInput{FileName: "EPH_usu_1_Trim_2024_txt.zip"})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestUpload_StoresExtractAndReloads(t *testing.T) {
	store := &fakeStore{snap: testSnapshot(t)}
	objects := newFakeStorage()
	bus := &recordingBus{}
	svc := New(store, newFakeRepo(), objects, testBuckets, bus, logger.Discard())

	resp, err := svc.Upload(context.Background(), UploadInput{
		FileName:    "EPH_usu_1_Trim_2024_txt.zip",
		ContentType: storage.ContentTypeZip,
		Size:        4,
		Body:        strings.NewReader("PK.."),
		Reload:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.FileKey != "extracts/EPH_usu_1_Trim_2024_txt.zip" {
		t.Fatalf("expected key under extracts/, got %s", resp.FileKey)
	}
	if _, ok := objects.objects["eph-extracts/"+resp.FileKey]; !ok {
		t.Fatalf("expected object to be stored, got %v", objects.objects)
	}
	if resp.Run == nil || resp.Run.Trigger != scheduler.TriggerUpload {
		t.Fatalf("expected upload-triggered run, got %+v", resp.Run)
	}
	if store.reloads != 1 {
		t.Fatalf("expected one reload, got %d", store.reloads)
	}
	if bus.names[0] != (events.ExtractUploaded{}).EventName() {
		t.Fatalf("expected extract uploaded event first, got %v", bus.names)
	}
}

func TestExportNormalized_WritesBothTablesUnderFingerprint(t *testing.T) {
	objects := newFakeStorage()
	svc := New(&fakeStore{snap: testSnapshot(t)}, newFakeRepo(), objects, testBuckets, nil, logger.Discard())

	resp, err := svc.ExportNormalized(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(resp.Objects))
	}
	for _, key := range []string{"4f2a9c/hogares.csv", "4f2a9c/individuos.csv"} {
		if objects.objects["eph-normalized/"+key] == 0 {
			t.Fatalf("expected non-empty object %s, got %v", key, objects.objects)
		}
	}

	link, err := svc.NormalizedDownloadURL(context.Background(), microdata.HouseholdsFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.FileKey != "4f2a9c/hogares.csv" {
		t.Fatalf("expected hogares key, got %s", link.FileKey)
	}
}

func TestNormalizedDownloadURL_BeforeExportIsNotFound(t *testing.T) {
	svc := New(&fakeStore{snap: testSnapshot(t)}, newFakeRepo(), newFakeStorage(), testBuckets, nil, logger.Discard())

	_, err := svc.NormalizedDownloadURL(context.Background(), microdata.IndividualsFile)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListExtracts_SkipsForeignObjects(t *testing.T) {
	objects := newFakeStorage()
	objects.objects["eph-extracts/extracts/EPH_usu_1_Trim_2024_txt.zip"] = 40
	objects.objects["eph-extracts/extracts/usu_hogar_T124.txt"] = 12
	objects.objects["eph-extracts/extracts/readme.md"] = 3
	objects.objects["eph-extracts/other/usu_individual_T124.txt"] = 9
	svc := New(&fakeStore{}, newFakeRepo(), objects, testBuckets, nil, logger.Discard())

	resp, err := svc.ListExtracts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 extracts, got %+v", resp.Items)
	}
	if resp.Items[0].Kind != "archive" || resp.Items[0].ContentType != storage.ContentTypeZip {
		t.Fatalf("expected zip archive first, got %+v", resp.Items[0])
	}
	if resp.Items[1].Kind != string(microdata.KindHouseholds) {
		t.Fatalf("expected households table second, got %+v", resp.Items[1])
	}
}

func TestDeleteExtract_RemovesObjectAndReloads(t *testing.T) {
	store := &fakeStore{snap: testSnapshot(t)}
	objects := newFakeStorage()
	objects.objects["eph-extracts/extracts/usu_hogar_T124.txt"] = 12
	svc := New(store, newFakeRepo(), objects, testBuckets, nil, logger.Discard())

	resp, err := svc.DeleteExtract(context.Background(), transport.DeleteExtractRequest{FileKey: "extracts/usu_hogar_T124.txt", Reload: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("expected object removed, got %v", objects.objects)
	}
	if resp.Run == nil || store.reloads != 1 {
		t.Fatalf("expected one reload run, got %+v (reloads %d)", resp.Run, store.reloads)
	}
}

func TestDeleteExtract_RejectsKeysOutsidePrefix(t *testing.T) {
	svc := New(&fakeStore{}, newFakeRepo(), newFakeStorage(), testBuckets, nil, logger.Discard())

	_, err := svc.DeleteExtract(context.Background(), transport.DeleteExtractRequest{FileKey: "normalized/hogares.csv"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.DeleteExtract(context.Background(), transport.DeleteExtractRequest{FileKey: "extracts/missing.zip"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
