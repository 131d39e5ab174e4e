package service

import (
	"bytes"
	"context"
	"io"
	"math"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/JoacoLucen/EPH-Insight-App/internal/adapters/storage"
	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/events"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/repository"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/transport"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/internal/scheduler"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

const msgStorageDisabled = "object storage is not configured"

// Reloader swaps the serving snapshot. *dataset.Store implements it.
type Reloader interface {
	Current() (*dataset.Snapshot, error)
	Reload(ctx context.Context) (*dataset.Snapshot, error)
}

// Buckets names where extracts are uploaded and normalized tables are written.
type Buckets struct {
	Extracts       string
	ExtractsPrefix string
	Normalized     string
}

// Service runs ingestion: uploads, reloads and normalized exports.
type Service struct {
	store    Reloader
	repo     repository.Repository
	storage  storage.StorageService
	buckets  Buckets
	enqueuer scheduler.ReloadEnqueuer
	bus      events.Bus
	log      *logger.Logger

	exportOnReload bool
}

// New creates a new ingestion service. storageSvc may be nil when object
// storage is disabled.
func New(store Reloader, repo repository.Repository, storageSvc storage.StorageService, buckets Buckets, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		repo:    repo,
		storage: storageSvc,
		buckets: buckets,
		bus:     bus,
		log:     log,
	}
}

// SetReloadEnqueuer makes reloads asynchronous. Without an enqueuer they run inline.
func (s *Service) SetReloadEnqueuer(enqueuer scheduler.ReloadEnqueuer) {
	s.enqueuer = enqueuer
}

// SetExportOnReload writes normalized tables after every successful reload.
func (s *Service) SetExportOnReload(enabled bool) {
	s.exportOnReload = enabled
}

// Status describes the snapshot currently served.
func (s *Service) Status() (transport.StatusResponse, error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.StatusResponse{}, err
	}
	return toStatusResponse(snap), nil
}

// TriggerReload opens a run and either enqueues it or runs it now.
func (s *Service) TriggerReload(ctx context.Context, trigger string) (transport.RunResponse, error) {
	id := uuid.New()
	run, err := s.repo.Create(ctx, id, trigger, repository.StatusQueued)
	if err != nil {
		s.log.DatabaseError("create ingestion run", err)
		return transport.RunResponse{}, err
	}

	payload := scheduler.ReloadPayload{RunID: id.String(), Trigger: trigger}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueReload(ctx, payload); err != nil {
			s.fail(ctx, id, err)
			return transport.RunResponse{}, apperr.Wrap(apperr.KindUnavailable, "failed to enqueue reload", err)
		}
		s.log.Info("reload enqueued", "runId", id, "trigger", trigger)
		return toRunResponse(run), nil
	}

	if err := s.ProcessReload(ctx, payload); err != nil {
		return transport.RunResponse{}, err
	}
	run, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RunResponse{}, err
	}
	return toRunResponse(run), nil
}

// ProcessReload loads the source into a new snapshot and records the run.
func (s *Service) ProcessReload(ctx context.Context, payload scheduler.ReloadPayload) error {
	id, err := s.openRun(ctx, payload)
	if err != nil {
		return err
	}

	snap, err := s.store.Reload(ctx)
	if err != nil {
		s.fail(ctx, id, err)
		return err
	}

	report := snap.Report()
	if err := s.repo.Finish(ctx, repository.FinishParams{
		ID:          id,
		Status:      repository.StatusSucceeded,
		Fingerprint: snap.Fingerprint,
		Individuals: len(snap.Dataset.Individuals),
		Households:  len(snap.Dataset.Households),
		Periods:     periodLabels(snap),
		Exclusions:  report.Exclusions,
	}); err != nil {
		s.log.DatabaseError("finish ingestion run", err)
	}

	if s.exportOnReload && s.storage != nil {
		if _, err := s.exportSnapshot(ctx, snap); err != nil {
			s.log.Warn("normalized export failed", "runId", id, "error", err)
		}
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.IngestionCompleted{
			BaseEvent:   events.NewBaseEvent(),
			RunID:       id,
			Fingerprint: snap.Fingerprint,
		})
	}
	return nil
}

func (s *Service) openRun(ctx context.Context, payload scheduler.ReloadPayload) (uuid.UUID, error) {
	if payload.RunID == "" {
		id := uuid.New()
		if _, err := s.repo.Create(ctx, id, payload.Trigger, repository.StatusRunning); err != nil {
			s.log.DatabaseError("create ingestion run", err)
			return uuid.Nil, err
		}
		return id, nil
	}

	id, err := uuid.Parse(payload.RunID)
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid run id")
	}
	if err := s.repo.MarkRunning(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, cause error) {
	s.log.IngestionFailed(id.String(), cause)
	if err := s.repo.Finish(ctx, repository.FinishParams{
		ID:     id,
		Status: repository.StatusFailed,
		Error:  cause.Error(),
	}); err != nil {
		s.log.DatabaseError("finish ingestion run", err)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.IngestionFailed{
			BaseEvent: events.NewBaseEvent(),
			RunID:     id,
			Error:     cause.Error(),
		})
	}
}

// UploadInput is a file received by the upload endpoint.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Reload      bool
}

// Upload stores an extract in the extracts bucket and optionally triggers a reload.
func (s *Service) Upload(ctx context.Context, in UploadInput) (transport.UploadResponse, error) {
	if s.storage == nil {
		return transport.UploadResponse{}, apperr.Unavailable(msgStorageDisabled)
	}
	if err := s.validateUpload(in.FileName, in.ContentType, in.Size); err != nil {
		return transport.UploadResponse{}, err
	}

	key, err := s.storage.UploadFile(ctx, s.buckets.Extracts, s.buckets.ExtractsPrefix, path.Base(in.FileName), in.ContentType, in.Body, in.Size)
	if err != nil {
		return transport.UploadResponse{}, err
	}
	s.log.Info("extract uploaded", "bucket", s.buckets.Extracts, "fileKey", key, "size", in.Size)

	if s.bus != nil {
		s.bus.Publish(ctx, events.ExtractUploaded{
			BaseEvent: events.NewBaseEvent(),
			Bucket:    s.buckets.Extracts,
			FileKey:   key,
			Size:      in.Size,
		})
	}

	resp := transport.UploadResponse{Bucket: s.buckets.Extracts, FileKey: key, Size: in.Size}
	if in.Reload {
		run, err := s.TriggerReload(ctx, scheduler.TriggerUpload)
		if err != nil {
			return transport.UploadResponse{}, err
		}
		resp.Run = &run
	}
	return resp, nil
}

// PresignUpload returns a URL the client can PUT an extract to directly.
func (s *Service) PresignUpload(ctx context.Context, req transport.PresignUploadRequest) (transport.PresignUploadResponse, error) {
	if s.storage == nil {
		return transport.PresignUploadResponse{}, apperr.Unavailable(msgStorageDisabled)
	}
	if err := s.validateUpload(req.FileName, req.ContentType, req.SizeBytes); err != nil {
		return transport.PresignUploadResponse{}, err
	}

	presigned, err := s.storage.GenerateUploadURL(ctx, s.buckets.Extracts, s.buckets.ExtractsPrefix, path.Base(req.FileName), req.ContentType, req.SizeBytes)
	if err != nil {
		return transport.PresignUploadResponse{}, err
	}
	return transport.PresignUploadResponse{
		UploadURL: presigned.URL,
		FileKey:   presigned.FileKey,
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

// MaxUploadSize is the largest extract accepted, zero when storage is disabled.
func (s *Service) MaxUploadSize() int64 {
	if s.storage == nil {
		return 0
	}
	return s.storage.GetMaxFileSize()
}

// ListExtracts lists the survey extracts stored under the extracts prefix.
// Objects that are neither archives nor survey tables are skipped.
func (s *Service) ListExtracts(ctx context.Context) (transport.ExtractListResponse, error) {
	if s.storage == nil {
		return transport.ExtractListResponse{}, apperr.Unavailable(msgStorageDisabled)
	}

	objects, err := s.storage.ListObjects(ctx, s.buckets.Extracts, s.buckets.ExtractsPrefix)
	if err != nil {
		return transport.ExtractListResponse{}, err
	}

	items := make([]transport.ExtractResponse, 0, len(objects))
	for _, obj := range objects {
		kind := "archive"
		if k, ok := microdata.KindOf(obj.Key); ok {
			kind = string(k)
		} else if !storage.IsArchive(obj.Key) {
			continue
		}
		items = append(items, transport.ExtractResponse{
			FileKey:      obj.Key,
			Kind:         kind,
			ContentType:  storage.ContentTypeFor(obj.Key),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return transport.ExtractListResponse{Items: items, Total: len(items)}, nil
}

// DeleteExtract removes one stored extract and optionally reloads so the
// served snapshot drops its rows.
func (s *Service) DeleteExtract(ctx context.Context, req transport.DeleteExtractRequest) (transport.DeleteExtractResponse, error) {
	if s.storage == nil {
		return transport.DeleteExtractResponse{}, apperr.Unavailable(msgStorageDisabled)
	}
	if !strings.HasPrefix(req.FileKey, s.buckets.ExtractsPrefix+"/") {
		return transport.DeleteExtractResponse{}, apperr.Validation("fileKey must be under " + s.buckets.ExtractsPrefix + "/")
	}
	if _, err := s.storage.StatObject(ctx, s.buckets.Extracts, req.FileKey); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return transport.DeleteExtractResponse{}, apperr.NotFound("extract not found")
		}
		return transport.DeleteExtractResponse{}, err
	}
	if err := s.storage.DeleteObject(ctx, s.buckets.Extracts, req.FileKey); err != nil {
		return transport.DeleteExtractResponse{}, err
	}
	s.log.Info("extract deleted", "bucket", s.buckets.Extracts, "fileKey", req.FileKey)

	resp := transport.DeleteExtractResponse{FileKey: req.FileKey}
	if req.Reload {
		run, err := s.TriggerReload(ctx, scheduler.TriggerManual)
		if err != nil {
			return transport.DeleteExtractResponse{}, err
		}
		resp.Run = &run
	}
	return resp, nil
}

func (s *Service) validateUpload(fileName, contentType string, size int64) error {
	if _, ok := microdata.KindOf(fileName); !ok && !storage.IsArchive(fileName) {
		return apperr.Validation("file must be a zipped extract or a usu_hogar/usu_individual table").
			WithDetails(map[string]string{"fileName": fileName})
	}
	if err := s.storage.ValidateContentType(contentType); err != nil {
		return apperr.Validation(err.Error())
	}
	if err := s.storage.ValidateFileSize(size); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

// ExportNormalized writes both normalized tables of the current snapshot to
// the normalized bucket under the snapshot fingerprint.
func (s *Service) ExportNormalized(ctx context.Context) (transport.NormalizedExportResponse, error) {
	if s.storage == nil {
		return transport.NormalizedExportResponse{}, apperr.Unavailable(msgStorageDisabled)
	}
	snap, err := s.store.Current()
	if err != nil {
		return transport.NormalizedExportResponse{}, err
	}
	return s.exportSnapshot(ctx, snap)
}

func (s *Service) exportSnapshot(ctx context.Context, snap *dataset.Snapshot) (transport.NormalizedExportResponse, error) {
	tables := []struct {
		name  string
		write func(io.Writer) error
	}{
		{microdata.HouseholdsFile, func(w io.Writer) error { return microdata.WriteHouseholds(w, snap.Dataset.Households) }},
		{microdata.IndividualsFile, func(w io.Writer) error { return microdata.WriteIndividuals(w, snap.Dataset.Individuals) }},
	}

	resp := transport.NormalizedExportResponse{Fingerprint: snap.Fingerprint}
	for _, table := range tables {
		var buf bytes.Buffer
		if err := table.write(&buf); err != nil {
			return transport.NormalizedExportResponse{}, err
		}
		key := normalizedKey(snap.Fingerprint, table.name)
		size := int64(buf.Len())
		if err := s.storage.PutObject(ctx, s.buckets.Normalized, key, storage.ContentTypeCSV, &buf, size); err != nil {
			return transport.NormalizedExportResponse{}, err
		}
		resp.Objects = append(resp.Objects, transport.NormalizedObject{Table: table.name, FileKey: key, Size: size})
	}

	s.log.Info("normalized tables exported", "bucket", s.buckets.Normalized, "fingerprint", snap.Fingerprint)
	return resp, nil
}

// NormalizedDownloadURL presigns a download of one normalized table of the
// current snapshot. The table must have been exported first.
func (s *Service) NormalizedDownloadURL(ctx context.Context, table string) (transport.DownloadURLResponse, error) {
	if s.storage == nil {
		return transport.DownloadURLResponse{}, apperr.Unavailable(msgStorageDisabled)
	}
	if table != microdata.HouseholdsFile && table != microdata.IndividualsFile {
		return transport.DownloadURLResponse{}, apperr.NotFound("unknown normalized table").
			WithDetails(map[string]string{"table": table})
	}
	snap, err := s.store.Current()
	if err != nil {
		return transport.DownloadURLResponse{}, err
	}

	key := normalizedKey(snap.Fingerprint, table)
	if _, err := s.storage.StatObject(ctx, s.buckets.Normalized, key); err != nil {
		return transport.DownloadURLResponse{}, err
	}
	presigned, err := s.storage.GenerateDownloadURL(ctx, s.buckets.Normalized, key)
	if err != nil {
		return transport.DownloadURLResponse{}, err
	}
	return transport.DownloadURLResponse{URL: presigned.URL, FileKey: key, ExpiresAt: presigned.ExpiresAt}, nil
}

// GetRun retrieves one ingestion run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (transport.RunResponse, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RunResponse{}, err
	}
	return toRunResponse(run), nil
}

// ListRuns lists ingestion runs, newest first.
func (s *Service) ListRuns(ctx context.Context, req transport.ListRunsRequest) (transport.RunListResponse, error) {
	page := req.Page
	pageSize := req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	runs, total, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return transport.RunListResponse{}, err
	}

	items := make([]transport.RunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, toRunResponse(run))
	}
	return transport.RunListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func normalizedKey(fingerprint, table string) string {
	return fingerprint + "/" + table
}

func periodLabels(snap *dataset.Snapshot) []string {
	periods := snap.Engine.Periods()
	labels := make([]string, 0, len(periods))
	for _, p := range periods {
		labels = append(labels, p.String())
	}
	return labels
}

func toRunResponse(run repository.Run) transport.RunResponse {
	periods := run.Periods
	if periods == nil {
		periods = []string{}
	}
	exclusions := run.Exclusions
	if exclusions == nil {
		exclusions = map[string]int{}
	}
	return transport.RunResponse{
		ID:          run.ID,
		Trigger:     run.Trigger,
		Status:      run.Status,
		Fingerprint: run.Fingerprint,
		Individuals: run.Individuals,
		Households:  run.Households,
		Periods:     periods,
		Exclusions:  exclusions,
		Error:       run.Error,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}

func toStatusResponse(snap *dataset.Snapshot) transport.StatusResponse {
	report := snap.Report()
	files := make([]transport.FileReport, 0, len(report.Files))
	for _, f := range report.Files {
		files = append(files, transport.FileReport{
			Name:       f.Name,
			Kind:       string(f.Kind),
			Rows:       f.Rows,
			Exclusions: f.Exclusions,
		})
	}
	return transport.StatusResponse{
		Fingerprint:     snap.Fingerprint,
		LoadedAt:        snap.LoadedAt,
		Individuals:     len(snap.Dataset.Individuals),
		Households:      len(snap.Dataset.Households),
		Periods:         periodLabels(snap),
		Files:           files,
		Exclusions:      report.Exclusions,
		UnknownClusters: report.UnknownClusters,
	}
}
