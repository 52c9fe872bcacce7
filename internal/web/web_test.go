package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"image-enhancer/internal/editor"
	"image-enhancer/internal/media"
	"image-enhancer/internal/publish"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type stubRequestor struct {
	mu     sync.Mutex
	result media.EditResult
	err    error
	reqs   []media.EditRequest
}

func (s *stubRequestor) EditImage(ctx context.Context, req media.EditRequest) (media.EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return s.result, s.err
}

func (s *stubRequestor) requests() []media.EditRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]media.EditRequest(nil), s.reqs...)
}

func newTestApp(t *testing.T, requestor editor.EditRequestor) *App {
	t.Helper()
	app := New(Settings{
		SessionSecret:  "test-secret",
		MaxUploadBytes: 1 << 20,
		DefaultPrompt:  "enhance and make crystal clear",
	}, requestor, publish.NewLocalSimulator(0),
		WithControllerOptions(editor.WithCopyResetDelay(time.Hour)))
	t.Cleanup(app.Close)
	return app
}

// browser 带 cookie 的客户端，不跟随重定向
type browser struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &browser{
		t:   t,
		srv: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (b *browser) get(path string) *http.Response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.srv.URL+path, nil)
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	return b.do(req)
}

// csrf 返回 CSRF cookie 中的 token，必要时先访问首页
func (b *browser) csrf() string {
	b.t.Helper()
	u, _ := url.Parse(b.srv.URL)
	for i := 0; i < 2; i++ {
		for _, c := range b.client.Jar.Cookies(u) {
			if c.Name == "_csrf" {
				return c.Value
			}
		}
		b.get("/")
	}
	b.t.Fatalf("no csrf cookie issued")
	return ""
}

func (b *browser) post(path, contentType string, body io.Reader) *http.Response {
	b.t.Helper()
	token := b.csrf()
	req, err := http.NewRequest(http.MethodPost, b.srv.URL+path, body)
	if err != nil {
		b.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-CSRF-Token", token)
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) *http.Response {
	b.t.Helper()
	return b.post(path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (b *browser) upload(filename, mediaType string, data []byte) *http.Response {
	b.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		h.Set("Content-Type", mediaType)
		part, err := w.CreatePart(h)
		if err != nil {
			b.t.Fatalf("create part: %v", err)
		}
		part.Write(data)
	}
	w.Close()
	return b.post("/image", w.FormDataContentType(), &body)
}

func (b *browser) state() StateResponse {
	b.t.Helper()
	resp := b.get("/state")
	if resp.StatusCode != http.StatusOK {
		b.t.Fatalf("GET /state: %d", resp.StatusCode)
	}
	var s StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		b.t.Fatalf("decode state: %v", err)
	}
	return s
}

func (b *browser) waitPhase(phase editor.Phase) StateResponse {
	b.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		s := b.state()
		if s.Phase == phase {
			return s
		}
		if time.Now().After(deadline) {
			b.t.Fatalf("timed out waiting for phase %s, last %s", phase, s.Phase)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func expectRedirect(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t, &stubRequestor{}).Echo)
	defer srv.Close()

	resp := newBrowser(t, srv).get("/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestIndexShowsUploadForm(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t, &stubRequestor{}).Echo)
	defer srv.Close()

	resp := newBrowser(t, srv).get("/")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Click to upload an image") {
		t.Fatalf("unexpected page %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Content-Security-Policy"), "img-src 'self' https: data:") {
		t.Fatalf("data URLs must be allowed as images: %q", resp.Header.Get("Content-Security-Policy"))
	}
}

func TestPostWithoutCSRFIsForbidden(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t, &stubRequestor{}).Echo)
	defer srv.Close()

	b := newBrowser(t, srv)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/reset", nil)
	if resp := b.do(req); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestEditPublishCopyDownloadFlow(t *testing.T) {
	result := pngBytes(t, 2, 1)
	requestor := &stubRequestor{result: media.EditResult{Data: media.EncodeDataURL("image/png", result), MediaType: "image/png"}}
	srv := httptest.NewServer(newTestApp(t, requestor).Echo)
	defer srv.Close()
	b := newBrowser(t, srv)

	expectRedirect(t, b.upload("photo.png", "image/png", pngBytes(t, 4, 3)))
	s := b.state()
	if s.Phase != editor.PhaseIdle || s.Source == nil || s.Source.MediaType != "image/png" {
		t.Fatalf("expected idle with source, got %+v", s)
	}
	if s.SourceSize == nil || s.SourceSize.Width != 4 || s.SourceSize.Height != 3 {
		t.Fatalf("unexpected source size %+v", s.SourceSize)
	}

	expectRedirect(t, b.postForm("/edit", url.Values{"instruction": {"add a hat"}}))
	s = b.waitPhase(editor.PhaseEdited)
	if s.ResultSize == nil || s.ResultSize.Width != 2 {
		t.Fatalf("unexpected result size %+v", s.ResultSize)
	}
	reqs := requestor.requests()
	if len(reqs) != 1 || reqs[0].Instruction != "add a hat" || reqs[0].Image.MediaType != "image/png" {
		t.Fatalf("unexpected edit requests %+v", reqs)
	}

	page, _ := io.ReadAll(b.get("/").Body)
	if !strings.Contains(string(page), "Download") || !strings.Contains(string(page), "data:image/png;base64,") {
		t.Fatalf("edited page missing result: %s", page)
	}

	dl := b.get("/download")
	data, _ := io.ReadAll(dl.Body)
	if dl.StatusCode != http.StatusOK || !bytes.Equal(data, result) {
		t.Fatalf("unexpected download %d (%d bytes)", dl.StatusCode, len(data))
	}
	if got := dl.Header.Get("Content-Disposition"); got != `attachment; filename="edited-image.png"` {
		t.Fatalf("unexpected disposition %q", got)
	}

	expectRedirect(t, b.post("/publish", "", nil))
	s = b.waitPhase(editor.PhasePublished)
	if s.Published == nil || s.Published.URL != s.Result.Data {
		t.Fatalf("simulated publish should return the result data URL, got %+v", s.Published)
	}

	resp := b.post("/copy", "", nil)
	var copied map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&copied); err != nil {
		t.Fatalf("decode copy: %v", err)
	}
	if resp.StatusCode != http.StatusOK || copied["url"] != s.Published.URL {
		t.Fatalf("unexpected copy response %d %+v", resp.StatusCode, copied)
	}
	if !b.state().URLCopied {
		t.Fatalf("expected urlCopied after copy")
	}

	expectRedirect(t, b.post("/reset", "", nil))
	s = b.state()
	if s.Phase != editor.PhaseEmpty || s.Result != nil || s.Published != nil || s.URLCopied {
		t.Fatalf("reset left state behind: %+v", s)
	}
	if s.Instruction != "add a hat" {
		t.Fatalf("instruction should survive reset, got %q", s.Instruction)
	}
}

func TestEditWithoutImageShowsNotice(t *testing.T) {
	requestor := &stubRequestor{}
	srv := httptest.NewServer(newTestApp(t, requestor).Echo)
	defer srv.Close()
	b := newBrowser(t, srv)

	expectRedirect(t, b.postForm("/edit", url.Values{"instruction": {"sepia"}}))
	s := b.state()
	if s.Notice != media.ValidationMessage || s.Phase != editor.PhaseEmpty {
		t.Fatalf("expected validation notice, got %+v", s)
	}
	if len(requestor.requests()) != 0 {
		t.Fatalf("no remote call expected")
	}
}

func TestPromptUpdatesInstruction(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t, &stubRequestor{}).Echo)
	defer srv.Close()
	b := newBrowser(t, srv)

	if s := b.state(); s.Instruction != "enhance and make crystal clear" {
		t.Fatalf("unexpected default prompt %q", s.Instruction)
	}
	expectRedirect(t, b.postForm("/prompt", url.Values{"instruction": {"make it a watercolor"}}))
	if s := b.state(); s.Instruction != "make it a watercolor" {
		t.Fatalf("prompt not updated: %q", s.Instruction)
	}
}

func TestUploadWithoutFileKeepsState(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t, &stubRequestor{}).Echo)
	defer srv.Close()
	b := newBrowser(t, srv)

	expectRedirect(t, b.upload("", "", nil))
	if s := b.state(); s.Phase != editor.PhaseEmpty || s.UploadError != "" {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestDownloadAndCopyRequireResult(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t, &stubRequestor{}).Echo)
	defer srv.Close()
	b := newBrowser(t, srv)

	if resp := b.get("/download"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp := b.post("/copy", "", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	app := newTestApp(t, &stubRequestor{})
	srv := httptest.NewServer(app.Echo)
	defer srv.Close()

	alice := newBrowser(t, srv)
	bob := newBrowser(t, srv)

	expectRedirect(t, alice.upload("a.png", "image/png", pngBytes(t, 1, 1)))
	if s := alice.state(); s.Phase != editor.PhaseIdle {
		t.Fatalf("expected idle, got %s", s.Phase)
	}
	if s := bob.state(); s.Phase != editor.PhaseEmpty {
		t.Fatalf("sessions leaked: %s", s.Phase)
	}
	if n := app.Sessions.Len(); n != 2 {
		t.Fatalf("expected 2 sessions, got %d", n)
	}
}

func TestRegistrySweepClosesIdleSessions(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	created := 0
	r := NewRegistry(time.Minute, func(id string) *editor.Controller {
		created++
		return editor.NewController(&stubRequestor{}, publish.NewLocalSimulator(0))
	})
	r.now = func() time.Time { return now }

	first := r.Get("a")
	r.Get("b")
	now = now.Add(45 * time.Second)
	r.Get("b")
	now = now.Add(30 * time.Second)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", r.Len())
	}
	if again := r.Get("a"); again == first || created != 3 {
		t.Fatalf("expired session should be recreated")
	}
}
