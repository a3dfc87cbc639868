package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type capturedRequest struct {
	path    string
	auth    string
	payload map[string]any
}

func newAPIServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if r.Header.Get("Content-Type") == "application/json" {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &req.payload)
		}
		captured = append(captured, req)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestSendText_PostsPayloadWithAuth(t *testing.T) {
	srv, captured := newAPIServer(t, http.StatusOK)
	s := NewHTTPSender(srv.URL, "secret")

	menu := ReplyMenu{{"один", "два"}}
	if err := s.SendText(context.Background(), 7, "привет", menu); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	got := (*captured)[0]
	if got.path != "/sendMessage" {
		t.Fatalf("wrong route: %q", got.path)
	}
	if got.auth != "Bearer secret" {
		t.Fatalf("missing bearer token: %q", got.auth)
	}
	if got.payload["user_id"] != float64(7) || got.payload["text"] != "привет" {
		t.Fatalf("unexpected payload: %+v", got.payload)
	}
	if _, ok := got.payload["reply_menu"]; !ok {
		t.Fatal("reply menu missing from payload")
	}
	if _, ok := got.payload["inline_menu"]; ok {
		t.Fatal("inline menu must be omitted for reply menus")
	}
}

func TestSendText_NilMenuOmitsBoth(t *testing.T) {
	srv, captured := newAPIServer(t, http.StatusOK)
	s := NewHTTPSender(srv.URL, "")

	if err := s.SendText(context.Background(), 7, "привет", nil); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	got := (*captured)[0]
	if got.auth != "" {
		t.Fatalf("no token configured, but auth sent: %q", got.auth)
	}
	if _, ok := got.payload["reply_menu"]; ok {
		t.Fatal("reply menu must be omitted")
	}
}

func TestEditLast_UsesEditRoute(t *testing.T) {
	srv, captured := newAPIServer(t, http.StatusOK)
	s := NewHTTPSender(srv.URL, "secret")

	if err := s.EditLast(context.Background(), 7, "обновлено", InlineMenu{{{Text: "ок", Data: "ok"}}}); err != nil {
		t.Fatalf("EditLast: %v", err)
	}
	got := (*captured)[0]
	if got.path != "/editMessage" {
		t.Fatalf("wrong route: %q", got.path)
	}
	if _, ok := got.payload["inline_menu"]; !ok {
		t.Fatal("inline menu missing from payload")
	}
}

func TestSendText_NonSuccessStatusIsError(t *testing.T) {
	srv, _ := newAPIServer(t, http.StatusBadGateway)
	s := NewHTTPSender(srv.URL, "")

	if err := s.SendText(context.Background(), 7, "привет", nil); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestSendDocument_UploadsMultipart(t *testing.T) {
	var gotUserID, gotCaption, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotUserID = r.FormValue("user_id")
		gotCaption = r.FormValue("caption")
		if f, hdr, err := r.FormFile("document"); err == nil {
			gotFile = hdr.Filename
			f.Close()
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "дизайн.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s := NewHTTPSender(srv.URL, "secret")
	if err := s.SendDocument(context.Background(), 7, path, "дизайн-проект"); err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if gotUserID != "7" || gotCaption != "дизайн-проект" || gotFile != "дизайн.pdf" {
		t.Fatalf("unexpected form: user=%q caption=%q file=%q", gotUserID, gotCaption, gotFile)
	}
}

func TestDownload_WritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/f1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("file-bytes"))
	}))
	t.Cleanup(srv.Close)

	s := NewHTTPSender(srv.URL, "")
	dest := filepath.Join(t.TempDir(), "out.pdf")
	if err := s.Download(context.Background(), "f1", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "file-bytes" {
		t.Fatalf("unexpected content: %q err=%v", data, err)
	}
}

func TestDownload_MissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	s := NewHTTPSender(srv.URL, "")
	dest := filepath.Join(t.TempDir(), "out.pdf")
	if err := s.Download(context.Background(), "missing", dest); err == nil {
		t.Fatal("expected error for 404 response")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("failed download must not leave a file")
	}
}
