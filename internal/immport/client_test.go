package immport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hipc-validation/virus-strain-validator/pkg/config"
)

func testClient(authURL, queryURL string) *Client {
	return New(config.ImmPortConfig{
		AuthURL:  authURL,
		QueryURL: queryURL,
		Timeout:  5 * time.Second,
	})
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if r.PostForm.Get("username") != "alice" || r.PostForm.Get("password") != "secret" {
			t.Errorf("unexpected credentials: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"tok-123"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	token, err := c.Authenticate(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want %q", token, "tok-123")
	}
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	if _, err := c.Authenticate(context.Background(), "alice", "wrong"); err == nil {
		t.Fatal("expected error for rejected credentials")
	}
}

func TestFetchStudy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/result/hai" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("studyAccession"); got != "SDY212" {
			t.Errorf("studyAccession = %q, want SDY212", got)
		}
		if got := r.Header.Get("Authorization"); got != "bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"virusStrainReported":"A/Perth/16/2009","valuePreferred":40}]`))
	}))
	defer srv.Close()

	c := testClient("", srv.URL)
	records, err := c.FetchStudy(context.Background(), "tok-123", "hai", "SDY212")
	if err != nil {
		t.Fatalf("FetchStudy() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].StringField("virusStrainReported"); got != "A/Perth/16/2009" {
		t.Errorf("virusStrainReported = %q", got)
	}
	// Non-string fields render via fmt.
	if got := records[0].StringField("valuePreferred"); got != "40" {
		t.Errorf("valuePreferred = %q, want %q", got, "40")
	}
}

func TestFetchStudyUnknownEndpoint(t *testing.T) {
	c := testClient("", "http://localhost:0")
	if _, err := c.FetchStudy(context.Background(), "tok", "elisa", "SDY1"); err == nil {
		t.Fatal("expected error for unknown endpoint")
	}
}

func TestDecodeRecordsWrappedPayload(t *testing.T) {
	records, err := DecodeRecords([]byte(`{"content":[{"a":"1"},{"a":"2"}]}`))
	if err != nil {
		t.Fatalf("DecodeRecords() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestDecodeRecordsGarbage(t *testing.T) {
	if _, err := DecodeRecords([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestStringFieldMissingAndNil(t *testing.T) {
	r := Record{"present": "x", "null": nil}
	if got := r.StringField("present"); got != "x" {
		t.Errorf("present = %q", got)
	}
	if got := r.StringField("null"); got != "" {
		t.Errorf("null field = %q, want empty", got)
	}
	if got := r.StringField("absent"); got != "" {
		t.Errorf("absent field = %q, want empty", got)
	}
}
