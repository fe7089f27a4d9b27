package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/config"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

type memRecorder struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*model.ReportArchive
}

func newMemRecorder() *memRecorder {
	return &memRecorder{records: make(map[int64]*model.ReportArchive)}
}

func (r *memRecorder) Create(_ context.Context, m month.Key, key string) (*model.ReportArchive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a := &model.ReportArchive{ID: r.nextID, Month: m, ObjectKey: key, Status: model.ArchivePending}
	r.records[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *memRecorder) GetByID(_ context.Context, id int64) (*model.ReportArchive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memRecorder) UpdateStatus(_ context.Context, id int64, status model.ArchiveStatus, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id].Status = status
	r.records[id].ErrorMessage = msg
	return nil
}

func (r *memRecorder) UpdateCompleted(_ context.Context, id, size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.records[id].Status = model.ArchiveCompleted
	r.records[id].SizeBytes = size
	r.records[id].CompletedAt = &now
	return nil
}

type reportMap map[month.Key]*model.Report

func (m reportMap) FindByMonth(_ context.Context, k month.Key) (*model.Report, error) {
	return m[k], nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveArchive(status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[status]++
}

var march = month.MustParse("2024-03")

func sampleReport() *model.Report {
	return &model.Report{
		Month:         march,
		Year:          2024,
		MonthName:     "March",
		Weighting:     model.WeightingUnit,
		TotalUnits:    decimal.NewFromInt(3),
		TotalExpenses: decimal.NewFromInt(350),
		CostPerUnit:   decimal.RequireFromString("116.67"),
		Lines: []model.ReportLine{
			{UserID: 2, UserName: "A", AmountDue: decimal.RequireFromString("233.33")},
		},
		ClosedBy: 1,
		Locked:   true,
	}
}

func newTestManager(client *mockS3Client, rec *memRecorder, reports reportMap) (*Manager, *countingObserver) {
	obs := &countingObserver{}
	m := NewManager(config.S3Config{Bucket: "ledger"}, "passphrase", rec, reports, slog.New(slog.DiscardHandler), WithObserver(obs))
	m.client = client
	return m, obs
}

func TestArchiveUploadsEncryptedReport(t *testing.T) {
	client := newMockS3()
	rec := newMemRecorder()
	m, obs := newTestManager(client, rec, nil)

	a, err := m.Archive(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if a.Status != model.ArchiveCompleted {
		t.Errorf("status = %s, want completed", a.Status)
	}
	if !strings.HasPrefix(a.ObjectKey, "reports/2024-03/") || !strings.HasSuffix(a.ObjectKey, ".json.enc") {
		t.Errorf("object key = %q", a.ObjectKey)
	}

	stored := client.objects[a.ObjectKey]
	if int64(len(stored)) != a.SizeBytes {
		t.Errorf("size = %d, want %d", a.SizeBytes, len(stored))
	}
	if bytes.Contains(stored, []byte("March")) {
		t.Error("stored object is not encrypted")
	}
	if obs.counts["completed"] != 1 {
		t.Errorf("completed count = %d, want 1", obs.counts["completed"])
	}

	got, err := m.Fetch(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !got.TotalExpenses.Equal(decimal.NewFromInt(350)) || got.Month != march {
		t.Errorf("fetched report = %+v", got)
	}
	if len(got.Lines) != 1 || !got.Lines[0].AmountDue.Equal(decimal.RequireFromString("233.33")) {
		t.Errorf("fetched lines = %+v", got.Lines)
	}
}

func TestArchiveRecordsUploadFailure(t *testing.T) {
	client := newMockS3()
	client.putErr = errors.New("bucket unreachable")
	rec := newMemRecorder()
	m, obs := newTestManager(client, rec, nil)

	if _, err := m.Archive(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected upload error")
	}

	a, _ := rec.GetByID(context.Background(), 1)
	if a.Status != model.ArchiveFailed {
		t.Errorf("status = %s, want failed", a.Status)
	}
	if !strings.Contains(a.ErrorMessage, "bucket unreachable") {
		t.Errorf("error message = %q", a.ErrorMessage)
	}
	if obs.counts["failed"] != 1 {
		t.Errorf("failed count = %d, want 1", obs.counts["failed"])
	}

	if _, err := m.Fetch(context.Background(), a.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("fetch failed archive err = %v, want not found", err)
	}
}

func TestDisabledManager(t *testing.T) {
	m := NewManager(config.S3Config{}, "", newMemRecorder(), nil, slog.New(slog.DiscardHandler))
	if m.Enabled() {
		t.Fatal("manager without credentials should be disabled")
	}
	if _, err := m.Archive(context.Background(), sampleReport()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}

	// Hook is a no-op.
	m.Hook()(context.Background(), sampleReport())
	m.Wait()
}

func TestRerun(t *testing.T) {
	client := newMockS3()
	m, _ := newTestManager(client, newMemRecorder(), reportMap{march: sampleReport()})

	if _, err := m.Rerun(context.Background(), march); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if _, err := m.Rerun(context.Background(), march); err != nil {
		t.Fatalf("second rerun: %v", err)
	}
	if n := len(client.keys()); n != 2 {
		t.Errorf("objects = %d, want 2", n)
	}

	_, err := m.Rerun(context.Background(), month.MustParse("2024-04"))
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("rerun of open month err = %v, want not found", err)
	}
}

func TestHookOutlivesCancelledContext(t *testing.T) {
	client := newMockS3()
	m, _ := newTestManager(client, newMemRecorder(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Hook()(ctx, sampleReport())
	cancel()
	m.Wait()

	if n := len(client.keys()); n != 1 {
		t.Errorf("objects = %d, want 1", n)
	}
}
