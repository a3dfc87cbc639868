package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPSender talks JSON to the chat platform's HTTP API. It implements both
// Sender and Downloader.
type HTTPSender struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPSender constructs an HTTPSender with a bounded-timeout client.
func NewHTTPSender(baseURL, token string) *HTTPSender {
	return &HTTPSender{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// outbound is the wire shape for text sends and edits.
type outbound struct {
	UserID     int64      `json:"user_id"`
	Text       string     `json:"text"`
	ReplyMenu  ReplyMenu  `json:"reply_menu,omitempty"`
	InlineMenu InlineMenu `json:"inline_menu,omitempty"`
}

func buildOutbound(userID int64, text string, menu Menu) outbound {
	out := outbound{UserID: userID, Text: text}
	switch m := menu.(type) {
	case ReplyMenu:
		out.ReplyMenu = m
	case InlineMenu:
		out.InlineMenu = m
	}
	return out
}

// SendText sends a text message, optionally with a menu.
func (s *HTTPSender) SendText(ctx context.Context, userID int64, text string, menu Menu) error {
	return s.postJSON(ctx, "/sendMessage", buildOutbound(userID, text, menu))
}

// EditLast rewrites the bot's last message to the user.
func (s *HTTPSender) EditLast(ctx context.Context, userID int64, text string, menu Menu) error {
	return s.postJSON(ctx, "/editMessage", buildOutbound(userID, text, menu))
}

// SendDocument uploads the file at path as a multipart document.
func (s *HTTPSender) SendDocument(ctx context.Context, userID int64, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("user_id", fmt.Sprintf("%d", userID))
	_ = mw.WriteField("caption", caption)
	fw, err := mw.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/sendDocument", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(req)
	return s.do(req)
}

// Download fetches an attachment by file id into destPath.
func (s *HTTPSender) Download(ctx context.Context, fileID, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/files/"+fileID, nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat api: download %s: status %d", fileID, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return err
	}
	return out.Close()
}

func (s *HTTPSender) postJSON(ctx context.Context, route string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+route, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)
	return s.do(req)
}

func (s *HTTPSender) authorize(req *http.Request) {
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
}

func (s *HTTPSender) do(req *http.Request) error {
	resp, err := s.Client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL.Path).Msg("chat api call failed")
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		err := fmt.Errorf("chat api: %s: status %d", req.URL.Path, resp.StatusCode)
		log.Warn().Err(err).Msg("chat api call rejected")
		return err
	}
	return nil
}
