// Package archive keeps an encrypted copy of every closed report in
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/config"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/google/uuid"
)

var ErrDisabled = errors.New("archive: object storage not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Recorder persists archive attempts.
type Recorder interface {
	Create(ctx context.Context, m month.Key, objectKey string) (*model.ReportArchive, error)
	GetByID(ctx context.Context, id int64) (*model.ReportArchive, error)
	UpdateStatus(ctx context.Context, id int64, status model.ArchiveStatus, errorMsg string) error
	UpdateCompleted(ctx context.Context, id, sizeBytes int64) error
}

type ReportFinder interface {
	FindByMonth(ctx context.Context, m month.Key) (*model.Report, error)
}

// Observer counts archive outcomes.
type Observer interface {
	ObserveArchive(status string)
}

type Manager struct {
	client     s3Client
	bucket     string
	passphrase string
	records    Recorder
	reports    ReportFinder
	observer   Observer
	logger     *slog.Logger

	wg sync.WaitGroup
}

type Option func(*Manager)

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager returns a manager that uploads to cfg. When cfg is incomplete
// the manager is disabled and every upload fails with ErrDisabled.
func NewManager(cfg config.S3Config, passphrase string, records Recorder, reports ReportFinder, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		bucket:     cfg.Bucket,
		passphrase: passphrase,
		records:    records,
		reports:    reports,
		logger:     logger,
	}
	if cfg.Configured() {
		m.client = newS3Client(cfg)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

// ObjectKey names the object a report of month mk is stored under.
func ObjectKey(mk month.Key) string {
	return fmt.Sprintf("reports/%s/%s.json.enc", mk, uuid.NewString())
}

// Archive encrypts r and uploads it, recording the attempt.
func (m *Manager) Archive(ctx context.Context, r *model.Report) (*model.ReportArchive, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}

	record, err := m.records.Create(ctx, r.Month, ObjectKey(r.Month))
	if err != nil {
		m.observe(model.ArchiveFailed)
		return nil, fmt.Errorf("create archive record: %w", err)
	}

	size, err := m.upload(ctx, record, r)
	if err != nil {
		if uerr := m.records.UpdateStatus(ctx, record.ID, model.ArchiveFailed, err.Error()); uerr != nil {
			m.logger.Error("record archive failure", "archive_id", record.ID, "error", uerr)
		}
		m.observe(model.ArchiveFailed)
		return nil, err
	}

	if err := m.records.UpdateCompleted(ctx, record.ID, size); err != nil {
		return nil, err
	}
	m.observe(model.ArchiveCompleted)
	m.logger.Info("report archived", "month", r.Month.String(), "key", record.ObjectKey, "size_bytes", size)
	return m.records.GetByID(ctx, record.ID)
}

func (m *Manager) upload(ctx context.Context, record *model.ReportArchive, r *model.Report) (int64, error) {
	if err := m.records.UpdateStatus(ctx, record.ID, model.ArchiveUploading, ""); err != nil {
		return 0, err
	}

	plaintext, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}
	sealed, err := Seal(plaintext, m.passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(record.ObjectKey),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

// Rerun archives the stored report of mk again.
func (m *Manager) Rerun(ctx context.Context, mk month.Key) (*model.ReportArchive, error) {
	r, err := m.reports.FindByMonth(ctx, mk)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound("report")
	}
	return m.Archive(ctx, r)
}

// Fetch downloads and decrypts a completed archive.
func (m *Manager) Fetch(ctx context.Context, id int64) (*model.Report, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}

	record, err := m.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != model.ArchiveCompleted {
		return nil, apperr.NotFound("archive")
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	plaintext, err := Open(sealed, m.passphrase)
	if err != nil {
		return nil, err
	}

	var r model.Report
	if err := json.Unmarshal(plaintext, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// Hook archives each closed report in the background. The close request's
// cancellation does not reach the upload.
func (m *Manager) Hook() func(context.Context, *model.Report) {
	return func(ctx context.Context, r *model.Report) {
		if m.client == nil {
			return
		}
		ctx = context.WithoutCancel(ctx)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if _, err := m.Archive(ctx, r); err != nil {
				m.logger.Error("archive report", "month", r.Month.String(), "error", err)
			}
		}()
	}
}

// Wait blocks until background uploads started by Hook have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) observe(status model.ArchiveStatus) {
	if m.observer != nil {
		m.observer.ObserveArchive(string(status))
	}
}
