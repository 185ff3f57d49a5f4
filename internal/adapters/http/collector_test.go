package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
	"github.com/cyface-de/cyup/pkg/ccyf"
	"github.com/cyface-de/cyup/pkg/log"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"https with path", "https://collector.example.org/api/v4/", "https://collector.example.org/api/v4", false},
		{"http host only", "http://localhost:8080", "http://localhost:8080", false},
		{"missing scheme", "collector.example.org/api", "", true},
		{"ftp scheme", "ftp://collector.example.org", "", true},
		{"garbage", "http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseEndpoint(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidEndpoint) {
					t.Fatalf("ParseEndpoint() error = %v, want ErrInvalidEndpoint", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint() unexpected error: %v", err)
			}
			if u.String() != tt.want {
				t.Errorf("ParseEndpoint() = %s, want %s", u, tt.want)
			}
		})
	}
}

func TestCollector_PreRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/measurements" {
			t.Errorf("request = %s %s, want POST /api/measurements", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("x-upload-content-length") != "123" {
			t.Errorf("x-upload-content-length = %q, want 123", r.Header.Get("x-upload-content-length"))
		}
		if r.Header.Get("x-upload-content-type") != ccyf.ContentType {
			t.Errorf("x-upload-content-type = %q", r.Header.Get("x-upload-content-type"))
		}

		var meta ports.Metadata
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			t.Fatalf("decode metadata: %v", err)
		}
		if meta.MeasurementID != "42" || meta.DeviceID != "device-1" {
			t.Errorf("metadata = %+v", meta)
		}

		w.Header().Set("Location", "/api/measurements/upload/abc")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := NewCollector(ts.Client(), ts.URL+"/api", log.NewNoopLogger())
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	resp, err := c.PreRequest(context.Background(), ports.PreRequest{
		Token:       "secret",
		PayloadSize: 123,
		Metadata:    ports.Metadata{DeviceID: "device-1", MeasurementID: "42"},
	})
	if err != nil {
		t.Fatalf("PreRequest() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("Location") != "/api/measurements/upload/abc" {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}
}

func TestCollector_TransferAndStatusCheck(t *testing.T) {
	payload := []byte("compressed-payload")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/measurements/upload/abc" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)

		switch r.Header.Get("Content-Range") {
		case "bytes 0-17/18":
			if string(body) != string(payload) {
				t.Errorf("body = %q", body)
			}
			if r.Header.Get("Content-Type") != ccyf.ContentType {
				t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			}
			w.WriteHeader(http.StatusCreated)
		case "bytes */18":
			if len(body) != 0 {
				t.Errorf("status check body = %d bytes, want empty", len(body))
			}
			w.Header().Set("Range", "bytes=0-9")
			w.WriteHeader(http.StatusPermanentRedirect)
		default:
			t.Errorf("unexpected Content-Range %q", r.Header.Get("Content-Range"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer ts.Close()

	c, err := NewCollector(NewHTTPClient(5*time.Second), ts.URL+"/api/", log.NewNoopLogger())
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	resp, err := c.Transfer(context.Background(), ports.Transfer{Token: "t", Location: "/api/measurements/upload/abc", Payload: payload})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("transfer status = %d, want 201", resp.StatusCode)
	}

	resp, err = c.StatusCheck(context.Background(), ports.StatusCheck{Token: "t", Location: ts.URL + "/api/measurements/upload/abc", PayloadSize: len(payload)})
	if err != nil {
		t.Fatalf("StatusCheck() error = %v", err)
	}
	if resp.StatusCode != http.StatusPermanentRedirect {
		t.Errorf("status check status = %d, want 308", resp.StatusCode)
	}
	if resp.Header.Get("Range") != "bytes=0-9" {
		t.Errorf("Range = %q", resp.Header.Get("Range"))
	}
}

func TestCollector_RelativeLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		wantPut  string
	}{
		{"relative path", "measurements/42", "/api/v4/measurements/42"},
		{"sibling", "upload/abc", "/api/v4/upload/abc"},
		{"absolute path", "/api/v4/measurements/7", "/api/v4/measurements/7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var paths []string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				paths = append(paths, r.Method+" "+r.URL.Path)
				if r.Method == http.MethodPost {
					w.Header().Set("Location", tt.location)
					w.WriteHeader(http.StatusOK)
					return
				}
				w.WriteHeader(http.StatusCreated)
			}))
			defer ts.Close()

			c, err := NewCollector(ts.Client(), ts.URL+"/api/v4", log.NewNoopLogger())
			if err != nil {
				t.Fatalf("NewCollector() error = %v", err)
			}

			resp, err := c.PreRequest(context.Background(), ports.PreRequest{Token: "t", PayloadSize: 3})
			if err != nil {
				t.Fatalf("PreRequest() error = %v", err)
			}
			if _, err := c.Transfer(context.Background(), ports.Transfer{
				Token:    "t",
				Location: resp.Header.Get("Location"),
				Payload:  []byte("abc"),
			}); err != nil {
				t.Fatalf("Transfer() error = %v", err)
			}

			want := []string{"POST /api/v4/measurements", "PUT " + tt.wantPut}
			if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
				t.Errorf("requests = %v, want %v", paths, want)
			}
		})
	}
}

func TestCollector_BadLocation(t *testing.T) {
	c, err := NewCollector(http.DefaultClient, "https://collector.example.org", log.NewNoopLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Transfer(context.Background(), ports.Transfer{Location: ""})
	if !errors.Is(err, domain.ErrInvalidEndpoint) {
		t.Errorf("Transfer() error = %v, want ErrInvalidEndpoint", err)
	}
}

func TestCollector_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c, err := NewCollector(http.DefaultClient, url, log.NewNoopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.PreRequest(context.Background(), ports.PreRequest{}); err == nil {
		t.Error("PreRequest() expected transport error")
	}
}
