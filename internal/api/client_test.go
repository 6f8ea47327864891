package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientEmptyBind(t *testing.T) {
	client, err := NewClient("  ", "")
	if err != nil || client != nil {
		t.Fatalf("expected nil client, got %v %v", client, err)
	}
	if _, err := client.Status(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "unauthorized"})
			return
		}
		_ = json.NewEncoder(w).Encode(DaemonStatus{Running: true, PID: 42})
	}))
	defer srv.Close()

	client, err := NewClient(strings.TrimPrefix(srv.URL, "http://"), "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != 42 {
		t.Fatalf("unexpected status: %+v", status)
	}

	anon, _ := NewClient(srv.URL, "")
	_, err = anon.Status(context.Background())
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if IsUnavailable(err) {
		t.Fatal("status errors are not unavailability")
	}
}

func TestClientCaptureEncodesMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/reports" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo part: %v", err)
		} else {
			file.Close()
			if header.Filename != "site.jpg" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		if r.FormValue("latitude") != "12.5" || r.FormValue("userId") != "alice" {
			t.Errorf("unexpected fields: %v", r.MultipartForm.Value)
		}
		if _, ok := r.MultipartForm.Value["longitude"]; ok {
			t.Error("longitude should be omitted when nil")
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CaptureResponse{Status: "queued", ReportID: 9})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	lat := 12.5
	resp, err := client.Capture(context.Background(), CaptureRequest{
		Photo:    []byte("jpeg"),
		Filename: "site.jpg",
		Latitude: &lat,
		UserID:   "alice",
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if resp.ReportID != 9 || resp.Status != "queued" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientSurfacesErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "offline queueing unavailable"})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "")
	_, err := client.Drain(context.Background())
	if err == nil || !strings.Contains(err.Error(), "offline queueing unavailable") {
		t.Fatalf("expected server message in error, got %v", err)
	}
}

func TestIsUnavailableOnClosedServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, _ := NewClient(url, "")
	if _, err := client.Queue(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
