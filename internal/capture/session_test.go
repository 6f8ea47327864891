package capture_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldreport/internal/capture"
	"fieldreport/internal/config"
	"fieldreport/internal/queue"
	"fieldreport/internal/testsupport"
	"fieldreport/internal/upload"
)

type staticConnectivity bool

func (s staticConnectivity) Online() bool { return bool(s) }

type fakeUploader struct {
	mu      sync.Mutex
	calls   int
	outcome upload.Outcome
	last    *queue.Record
}

func (f *fakeUploader) Submit(_ context.Context, rec *queue.Record) upload.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = rec
	return f.outcome
}

type failingQueue struct{ err error }

func (q failingQueue) Add(context.Context, queue.NewRecord) (int64, error) { return 0, q.err }

func coords(lat, lon float64) (*float64, *float64) { return &lat, &lon }

func TestSubmitOfflineQueuesReport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	uploader := &fakeUploader{}
	session := capture.NewSession(cfg, store, uploader, staticConnectivity(false), nil)

	lat, lon := coords(10.5, 20.25)
	res, err := session.Submit(context.Background(), capture.Photo{
		Data:      testsupport.JPEGBytes(t, 8, 8),
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != capture.StatusQueued || res.ReportID == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if uploader.calls != 0 {
		t.Fatalf("offline capture must not upload, calls=%d", uploader.calls)
	}
	rec, err := store.Get(context.Background(), res.ReportID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *rec.Latitude != 10.5 || *rec.Longitude != 20.25 || rec.UserID != "test-user" || rec.ContentType != "image/jpeg" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestSubmitWithoutStorageFailsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutPersistentStorage())
	if _, err := queue.Open(cfg); !errors.Is(err, queue.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	uploader := &fakeUploader{}
	session := capture.NewSession(cfg, nil, uploader, staticConnectivity(false), nil)

	_, err := session.Submit(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 4, 4)})
	var failure *capture.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *capture.Failure, got %T %v", err, err)
	}
	if failure.Message == "" || !errors.Is(err, queue.ErrStorageUnavailable) {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if uploader.calls != 0 {
		t.Fatal("offline capture without storage must not upload")
	}
	if session.QueueAvailable() {
		t.Fatal("QueueAvailable should be false")
	}
}

func TestSubmitWithoutStorageUploadsWhenOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutPersistentStorage())
	uploader := &fakeUploader{outcome: upload.Outcome{Kind: upload.Delivered}}
	session := capture.NewSession(cfg, nil, uploader, staticConnectivity(true), nil)

	res, err := session.Submit(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 4, 4)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != capture.StatusUploaded || uploader.calls != 1 {
		t.Fatalf("expected direct upload, result=%+v calls=%d", res, uploader.calls)
	}
	if uploader.last.IdempotencyKey == "" || uploader.last.Timestamp == "" {
		t.Fatalf("direct record missing fields: %+v", uploader.last)
	}

	uploader.outcome = upload.Outcome{Kind: upload.Rejected, Message: "bad photo"}
	if _, err := session.Submit(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 4, 4)}); !capture.IsFailure(err) {
		t.Fatalf("expected failure on rejection without storage, got %v", err)
	}
}

func TestSubmitAlwaysPolicyQueuesWhileOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCapturePolicy(config.CapturePolicyAlways))
	store := testsupport.MustOpenStore(t, cfg)
	uploader := &fakeUploader{outcome: upload.Outcome{Kind: upload.Delivered}}
	requested := 0
	session := capture.NewSession(cfg, store, uploader, staticConnectivity(true), nil,
		capture.WithDrainRequest(func() { requested++ }),
	)

	res, err := session.Submit(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 4, 4)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != capture.StatusQueued || uploader.calls != 0 {
		t.Fatalf("expected queueing, result=%+v calls=%d", res, uploader.calls)
	}
	if requested != 1 {
		t.Fatalf("expected drain request, got %d", requested)
	}
}

func TestSubmitOfflineOnlyPolicy(t *testing.T) {
	tests := []struct {
		name       string
		outcome    upload.Outcome
		wantStatus capture.Status
		wantStored int
	}{
		{"delivered directly", upload.Outcome{Kind: upload.Delivered}, capture.StatusUploaded, 0},
		{"rejected falls back to queue", upload.Outcome{Kind: upload.Rejected, Message: "nope"}, capture.StatusQueued, 1},
		{"transport failure falls back to queue", upload.Outcome{Kind: upload.TransportFailure}, capture.StatusQueued, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithCapturePolicy(config.CapturePolicyOfflineOnly))
			store := testsupport.MustOpenStore(t, cfg)
			uploader := &fakeUploader{outcome: tc.outcome}
			session := capture.NewSession(cfg, store, uploader, staticConnectivity(true), nil)

			res, err := session.Submit(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 4, 4)})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if res.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", res.Status, tc.wantStatus)
			}
			if n, _ := store.Count(context.Background()); n != tc.wantStored {
				t.Fatalf("stored = %d, want %d", n, tc.wantStored)
			}
		})
	}
}

func TestSubmitOfflineOnlyRejectionIsNotReportedAsOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCapturePolicy(config.CapturePolicyOfflineOnly))
	store := testsupport.MustOpenStore(t, cfg)
	uploader := &fakeUploader{outcome: upload.Outcome{Kind: upload.Rejected, Message: "nope"}}
	requested := 0
	session := capture.NewSession(cfg, store, uploader, staticConnectivity(true), nil,
		capture.WithDrainRequest(func() { requested++ }),
	)

	res, err := session.Submit(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 4, 4)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != capture.StatusQueued || res.ReportID == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if strings.Contains(res.Message, "offline") {
		t.Fatalf("online device told it is offline: %q", res.Message)
	}
	if !strings.Contains(res.Message, "retried") {
		t.Fatalf("expected retry message, got %q", res.Message)
	}
	if requested != 0 {
		t.Fatalf("failed direct upload should not request an immediate drain, got %d", requested)
	}
}

func TestSubmitSurfacesAddFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	txErr := &queue.TransactionError{Op: "add", Err: errors.New("disk full")}
	session := capture.NewSession(cfg, failingQueue{err: txErr}, &fakeUploader{}, staticConnectivity(false), nil)

	_, err := session.Submit(context.Background(), capture.Photo{Data: []byte("raw")})
	var failure *capture.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected failure, got %v", err)
	}
	if !queue.IsTransactionError(err) {
		t.Fatalf("expected wrapped TransactionError, got %v", err)
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	session := capture.NewSession(cfg, store, &fakeUploader{}, staticConnectivity(false), nil)

	if _, err := session.Submit(context.Background(), capture.Photo{}); !capture.IsFailure(err) {
		t.Fatalf("expected failure for empty photo, got %v", err)
	}
	lat, lon := coords(95, 0)
	if _, err := session.Submit(context.Background(), capture.Photo{Data: []byte("x"), Latitude: lat, Longitude: lon}); !errors.Is(err, queue.ErrInvalidCoordinates) {
		t.Fatalf("expected invalid coordinates, got %v", err)
	}

	cfg.Capabilities.Camera = false
	noCamera := capture.NewSession(cfg, store, &fakeUploader{}, staticConnectivity(false), nil)
	if _, err := noCamera.Submit(context.Background(), capture.Photo{Data: []byte("x")}); !capture.IsFailure(err) {
		t.Fatalf("expected failure without camera capability, got %v", err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("nothing should be stored, count=%d", n)
	}
}

func TestSubmitReadsEXIFLocation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	session := capture.NewSession(cfg, store, &fakeUploader{}, staticConnectivity(false), nil)

	taken := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	data := testsupport.JPEGWithEXIF(t, 8, 8, 40.5, -73.25, taken)
	res, err := session.Submit(context.Background(), capture.Photo{Data: data})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Latitude == nil || res.Longitude == nil {
		t.Fatalf("expected coordinates from EXIF, got %+v", res)
	}
	if math.Abs(*res.Latitude-40.5) > 1e-4 || math.Abs(*res.Longitude+73.25) > 1e-4 {
		t.Fatalf("coordinates = %v,%v", *res.Latitude, *res.Longitude)
	}
	if !res.TakenAt.Equal(taken) {
		t.Fatalf("taken at = %v, want %v", res.TakenAt, taken)
	}
}

func TestSubmitPrefersFrontEndLocationOverEXIF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	session := capture.NewSession(cfg, store, &fakeUploader{}, staticConnectivity(false), nil)

	lat, lon := coords(1, 2)
	data := testsupport.JPEGWithEXIF(t, 8, 8, 40.5, -73.25, time.Now())
	res, err := session.Submit(context.Background(), capture.Photo{Data: data, Latitude: lat, Longitude: lon})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if *res.Latitude != 1 || *res.Longitude != 2 {
		t.Fatalf("front-end coordinates should win, got %v,%v", *res.Latitude, *res.Longitude)
	}
}

func TestSubmitDownscalesLargePhotos(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Capture.MaxDimension = 16
	store := testsupport.MustOpenStore(t, cfg)
	session := capture.NewSession(cfg, store, &fakeUploader{}, staticConnectivity(false), nil)

	res, err := session.Submit(context.Background(), capture.Photo{Data: testsupport.JPEGBytes(t, 64, 32), Filename: "site.jpeg"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Resized {
		t.Fatal("expected resize")
	}
	rec, err := store.Get(context.Background(), res.ReportID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	img, _, err := image.DecodeConfig(bytes.NewReader(rec.Photo))
	if err != nil {
		t.Fatalf("decode stored photo: %v", err)
	}
	if img.Width != 16 || img.Height != 8 {
		t.Fatalf("stored size %dx%d, want 16x8", img.Width, img.Height)
	}
	if rec.Filename != "site.jpg" {
		t.Fatalf("filename = %q", rec.Filename)
	}
}

func TestSubmitKeepsOpaquePayloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	session := capture.NewSession(cfg, store, &fakeUploader{}, staticConnectivity(false), nil)

	payload := []byte("not an image at all")
	res, err := session.Submit(context.Background(), capture.Photo{Data: payload})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rec, _ := store.Get(context.Background(), res.ReportID)
	if !bytes.Equal(rec.Photo, payload) || res.Resized {
		t.Fatalf("payload altered: %q", rec.Photo)
	}
}
