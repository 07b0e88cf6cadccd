package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/config"
	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/internal/memalloc"
	"github.com/smazurov/spearcam/internal/metrics/exporters"
	"github.com/smazurov/spearcam/internal/surface"
)

const (
	testUser = "admin"
	testPass = "secret"
)

var authHeader = "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte(testUser+":"+testPass))

type fakePictures struct {
	mu   sync.Mutex
	data []byte
}

func (p *fakePictures) LastPicture() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

type fakeCamera struct {
	mu         sync.Mutex
	state      camera.State
	recording  bool
	params     camera.Parameters
	startErr   error
	pictureErr error
	picture    []byte
	pictures   *fakePictures
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		state:    camera.StateStopped,
		params:   camera.DefaultParameters(),
		pictures: &fakePictures{},
	}
}

func (c *fakeCamera) Status() camera.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return camera.Status{
		State:     c.state,
		Recording: c.recording,
		Width:     c.params.Preview.Size.Width,
		Height:    c.params.Preview.Size.Height,
	}
}

func (c *fakeCamera) StartPreview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	if c.state == camera.StateRunning {
		return camera.ErrInvalidOperation
	}
	c.state = camera.StateRunning
	return nil
}

func (c *fakeCamera) StopPreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = camera.StateStopped
	c.recording = false
}

func (c *fakeCamera) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = true
	return nil
}

func (c *fakeCamera) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	return nil
}

func (c *fakeCamera) AutoFocus() error { return nil }

func (c *fakeCamera) TakePicture(context.Context) error {
	if c.pictureErr != nil {
		return c.pictureErr
	}
	c.StopPreview()
	data := c.picture
	if data == nil {
		data = []byte{0xFF, 0xD8, 0xFF, 0xD9}
	}
	c.pictures.mu.Lock()
	c.pictures.data = data
	c.pictures.mu.Unlock()
	return nil
}

func (c *fakeCamera) GetParameters() camera.Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Clone()
}

func (c *fakeCamera) SetParameters(p camera.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p.Clone()
	return nil
}

type fakeLEDs struct {
	mu   sync.Mutex
	last string
}

func (l *fakeLEDs) Set(ledType string, enabled bool, pattern string) error {
	if pattern == "strobe" {
		return fmt.Errorf("unsupported pattern %q", pattern)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = fmt.Sprintf("%s:%v:%s", ledType, enabled, pattern)
	return nil
}

func (l *fakeLEDs) Available() []string { return []string{"system"} }
func (l *fakeLEDs) Patterns() []string  { return []string{"solid", "blink", "heartbeat"} }

type testEnv struct {
	server     *Server
	api        humatest.TestAPI
	cam        *fakeCamera
	dev        *memalloc.Device
	bus        *events.Bus
	leds       *fakeLEDs
	paramsFile string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	bus := events.New()
	alloc, err := memalloc.New(memalloc.DefaultConfig(), memalloc.WithEventBus(bus))
	if err != nil {
		t.Fatalf("Failed to create allocator: %v", err)
	}
	dev := memalloc.NewDevice(alloc)
	cam := newFakeCamera()
	leds := &fakeLEDs{}
	paramsFile := filepath.Join(t.TempDir(), "camera.toml")

	server := NewServer(&Options{
		AuthUsername:      testUser,
		AuthPassword:      testPass,
		EventBus:          bus,
		Memalloc:          dev,
		Camera:            cam,
		Pictures:          cam.pictures,
		Preview:           surface.NewMemory(),
		ParametersFile:    paramsFile,
		LEDController:     leds,
		PrometheusHandler: exporters.HTTPHandler(),
	})

	return &testEnv{
		server:     server,
		api:        humatest.Wrap(t, server.GetAPI()),
		cam:        cam,
		dev:        dev,
		bus:        bus,
		leds:       leds,
		paramsFile: paramsFile,
	}
}

func decode(t *testing.T, body string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", body, err)
	}
}

func TestHealthAndVersionSkipAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/health", "/api/version"} {
		resp := env.api.Get(path)
		if resp.Code != http.StatusOK {
			t.Errorf("Expected %s status 200, got %d", path, resp.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.api.Get("/api/memalloc")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", resp.Code)
	}
	if got := resp.Header().Get("WWW-Authenticate"); got != authRealm {
		t.Errorf("Expected WWW-Authenticate %q, got %q", authRealm, got)
	}

	bad := "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte("admin:wrong"))
	if resp := env.api.Get("/api/memalloc", bad); resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for wrong password, got %d", resp.Code)
	}

	if resp := env.api.Get("/api/memalloc", authHeader); resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 with credentials, got %d", resp.Code)
	}

	query := "/api/memalloc?auth=" + base64.StdEncoding.EncodeToString([]byte(testUser+":"+testPass))
	if resp := env.api.Get(query); resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 with query credentials, got %d", resp.Code)
	}
}

func TestMemallocSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.api.Post("/api/memalloc/sessions", authHeader)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var sess struct {
		ID int `json:"id"`
	}
	decode(t, resp.Body.String(), &sess)
	if sess.ID != 0 {
		t.Errorf("Expected first session id 0, got %d", sess.ID)
	}

	resp = env.api.Post("/api/memalloc/sessions/0/buffers", authHeader, map[string]any{"size": 8192})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var buf struct {
		BusAddress uint32 `json:"bus_address"`
		Hex        string `json:"hex"`
		OK         bool   `json:"ok"`
	}
	decode(t, resp.Body.String(), &buf)
	if !buf.OK || buf.BusAddress == 0 {
		t.Fatalf("Expected an allocation, got %+v", buf)
	}

	var table struct {
		Stats    memalloc.Stats `json:"stats"`
		Sessions []int          `json:"sessions"`
	}
	decode(t, env.api.Get("/api/memalloc", authHeader).Body.String(), &table)
	if table.Stats.UsedChunks != 1 {
		t.Errorf("Expected 1 used chunk, got %d", table.Stats.UsedChunks)
	}
	if len(table.Sessions) != 1 || table.Sessions[0] != 0 {
		t.Errorf("Expected sessions [0], got %v", table.Sessions)
	}

	path := "/api/memalloc/sessions/0/buffers/" + buf.Hex
	if resp := env.api.Delete(path, authHeader); resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := env.api.Delete(path, authHeader); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 freeing twice, got %d", resp.Code)
	}

	resp = env.api.Delete("/api/memalloc/sessions/0", authHeader)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if resp := env.api.Delete("/api/memalloc/sessions/0", authHeader); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for closed session, got %d", resp.Code)
	}
}

func TestMemallocConcurrentFreeSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	env.api.Post("/api/memalloc/sessions", authHeader)
	var buf struct {
		Hex string `json:"hex"`
	}
	decode(t, env.api.Post("/api/memalloc/sessions/0/buffers", authHeader, map[string]any{"size": 4096}).Body.String(), &buf)

	path := "/api/memalloc/sessions/0/buffers/" + buf.Hex
	codes := make(chan int, 8)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- env.api.Delete(path, authHeader).Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for c := range codes {
		counts[c]++
	}
	if counts[http.StatusNoContent] != 1 || counts[http.StatusNotFound] != 7 {
		t.Errorf("Expected one 204 and seven 404, got %v", counts)
	}
}

func TestMemallocCloseReleasesChunks(t *testing.T) {
	env := newTestEnv(t)

	env.api.Post("/api/memalloc/sessions", authHeader)
	for range 3 {
		env.api.Post("/api/memalloc/sessions/0/buffers", authHeader, map[string]any{"size": 4096})
	}

	var closed struct {
		Freed int `json:"freed"`
	}
	decode(t, env.api.Delete("/api/memalloc/sessions/0", authHeader).Body.String(), &closed)
	if closed.Freed != 3 {
		t.Errorf("Expected 3 chunks freed, got %d", closed.Freed)
	}
	if used := env.dev.Allocator().Stats().UsedChunks; used != 0 {
		t.Errorf("Expected 0 used chunks after close, got %d", used)
	}
}

func TestMemallocAllocationFailureIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	env.api.Post("/api/memalloc/sessions", authHeader)

	resp := env.api.Post("/api/memalloc/sessions/0/buffers", authHeader, map[string]any{"size": 1 << 30})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var buf struct {
		BusAddress uint32 `json:"bus_address"`
		OK         bool   `json:"ok"`
	}
	decode(t, resp.Body.String(), &buf)
	if buf.OK || buf.BusAddress != 0 {
		t.Errorf("Expected ok=false and address 0, got %+v", buf)
	}
}

func TestMemallocTooManySessions(t *testing.T) {
	env := newTestEnv(t)

	for i := range memalloc.MaxOpen {
		if resp := env.api.Post("/api/memalloc/sessions", authHeader); resp.Code != http.StatusCreated {
			t.Fatalf("Expected session %d to open, got status %d", i, resp.Code)
		}
	}
	if resp := env.api.Post("/api/memalloc/sessions", authHeader); resp.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", resp.Code)
	}
}

func TestMemallocReset(t *testing.T) {
	env := newTestEnv(t)
	env.api.Post("/api/memalloc/sessions", authHeader)
	env.api.Post("/api/memalloc/sessions/0/buffers", authHeader, map[string]any{"size": 4096})

	if resp := env.api.Post("/api/memalloc/reset", authHeader); resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}
	if used := env.dev.Allocator().Stats().UsedChunks; used != 0 {
		t.Errorf("Expected 0 used chunks after reset, got %d", used)
	}
}

func TestMemallocBadAddress(t *testing.T) {
	env := newTestEnv(t)
	env.api.Post("/api/memalloc/sessions", authHeader)

	if resp := env.api.Delete("/api/memalloc/sessions/0/buffers/nope", authHeader); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestCameraActions(t *testing.T) {
	env := newTestEnv(t)

	resp := env.api.Post("/api/camera/preview/start", authHeader)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var st camera.Status
	decode(t, resp.Body.String(), &st)
	if st.State != camera.StateRunning {
		t.Errorf("Expected state running, got %s", st.State)
	}

	if resp := env.api.Post("/api/camera/preview/start", authHeader); resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409 starting twice, got %d", resp.Code)
	}

	decode(t, env.api.Post("/api/camera/recording/start", authHeader).Body.String(), &st)
	if !st.Recording {
		t.Error("Expected recording after recording/start")
	}

	decode(t, env.api.Post("/api/camera/preview/stop", authHeader).Body.String(), &st)
	if st.State != camera.StateStopped || st.Recording {
		t.Errorf("Expected stopped and not recording, got %s recording=%v", st.State, st.Recording)
	}
}

func TestCameraErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no device", camera.ErrNoDevice, http.StatusServiceUnavailable},
		{"invalid operation", camera.ErrInvalidOperation, http.StatusConflict},
		{"bad value", fmt.Errorf("wrapped: %w", camera.ErrBadValue), http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.cam.startErr = tt.err

			resp := env.api.Post("/api/camera/preview/start", authHeader)
			if resp.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestTakePicture(t *testing.T) {
	env := newTestEnv(t)

	resp := env.api.Post("/api/camera/picture", authHeader)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var pic struct {
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Bytes     int    `json:"bytes"`
		ImageData string `json:"image_data"`
	}
	decode(t, resp.Body.String(), &pic)
	if pic.Width != 320 || pic.Height != 240 {
		t.Errorf("Expected 320x240, got %dx%d", pic.Width, pic.Height)
	}
	data, err := base64.StdEncoding.DecodeString(pic.ImageData)
	if err != nil {
		t.Fatalf("Failed to decode image: %v", err)
	}
	if len(data) != pic.Bytes || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("Expected a %d byte JPEG, got % x", pic.Bytes, data)
	}
}

func TestTakePictureNoDevice(t *testing.T) {
	env := newTestEnv(t)
	env.cam.pictureErr = fmt.Errorf("probe: %w", camera.ErrNoDevice)

	if resp := env.api.Post("/api/camera/picture", authHeader); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.Code)
	}
}

func TestParametersRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	changed := make(chan events.ParametersChangedEvent, 1)
	unsub := env.bus.Subscribe(func(e events.ParametersChangedEvent) { changed <- e })
	defer unsub()

	var got struct {
		Parameters camera.Parameters `json:"parameters"`
		Flattened  string            `json:"flattened"`
	}
	decode(t, env.api.Get("/api/camera/parameters", authHeader).Body.String(), &got)
	if !strings.Contains(got.Flattened, "preview-size=320x240") {
		t.Errorf("Expected flattened preview-size=320x240, got %q", got.Flattened)
	}

	p := camera.DefaultParameters()
	p.Preview.Size = camera.Size{Width: 640, Height: 480}
	resp := env.api.Put("/api/camera/parameters", authHeader, p)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if env.cam.GetParameters().Preview.Size.Width != 640 {
		t.Errorf("Expected preview width 640, got %d", env.cam.GetParameters().Preview.Size.Width)
	}

	select {
	case ev := <-changed:
		if ev.Source != "api" {
			t.Errorf("Expected source api, got %s", ev.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected ParametersChangedEvent")
	}
}

func TestParametersRejected(t *testing.T) {
	env := newTestEnv(t)

	p := camera.DefaultParameters()
	p.Focus.Mode = "auto"
	if resp := env.api.Put("/api/camera/parameters", authHeader, p); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
	if mode := env.cam.GetParameters().Focus.Mode; mode != camera.FocusFixed {
		t.Errorf("Expected focus mode to stay %s, got %s", camera.FocusFixed, mode)
	}
}

func TestTakePictureReportsEncodedSize(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 4)), nil); err != nil {
		t.Fatal(err)
	}
	env.cam.picture = buf.Bytes()

	var pic struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decode(t, env.api.Post("/api/camera/picture", authHeader).Body.String(), &pic)
	if pic.Width != 8 || pic.Height != 4 {
		t.Errorf("Expected the delivered 8x4, got %dx%d", pic.Width, pic.Height)
	}
}

func TestParametersPersist(t *testing.T) {
	env := newTestEnv(t)

	p := camera.DefaultParameters()
	p.Preview.Size = camera.Size{Width: 640, Height: 480}
	if resp := env.api.Put("/api/camera/parameters", authHeader, p); resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if _, err := os.Stat(env.paramsFile); !os.IsNotExist(err) {
		t.Fatalf("Expected no file without persist, got %v", err)
	}

	resp := env.api.Put("/api/camera/parameters?persist=true", authHeader, p)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	saved, err := config.LoadCameraParameters(env.paramsFile)
	if err != nil {
		t.Fatalf("LoadCameraParameters failed: %v", err)
	}
	if saved.Preview.Size != p.Preview.Size {
		t.Errorf("Expected saved preview %s, got %s", p.Preview.Size, saved.Preview.Size)
	}
}

func TestParametersPersistRejectedNotWritten(t *testing.T) {
	env := newTestEnv(t)

	p := camera.DefaultParameters()
	p.Picture.Size = camera.Size{Width: 320, Height: 241}
	if resp := env.api.Put("/api/camera/parameters?persist=true", authHeader, p); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
	if _, err := os.Stat(env.paramsFile); !os.IsNotExist(err) {
		t.Errorf("Expected rejected parameters not written, got %v", err)
	}
}

func TestParametersPersistWithoutFile(t *testing.T) {
	cam := newFakeCamera()
	server := NewServer(&Options{Camera: cam})
	api := humatest.Wrap(t, server.GetAPI())

	p := camera.DefaultParameters()
	p.Rotation = 90
	if resp := api.Put("/api/camera/parameters?persist=true", p); resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
	if got := cam.GetParameters().Rotation; got != 0 {
		t.Errorf("Expected rotation unchanged, got %d", got)
	}
}

func TestParametersPatchFlattened(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"flattened": "preview-size=640x480;jpeg-quality=75;unknown-key=1"}
	resp := env.api.Patch("/api/camera/parameters?persist=true", authHeader, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got struct {
		Flattened string `json:"flattened"`
	}
	decode(t, resp.Body.String(), &got)
	if !strings.Contains(got.Flattened, "preview-size=640x480") {
		t.Errorf("Expected preview-size=640x480 in %q", got.Flattened)
	}

	p := env.cam.GetParameters()
	if p.Picture.JPEGQuality != 75 {
		t.Errorf("Expected quality 75, got %d", p.Picture.JPEGQuality)
	}
	if p.Picture.Size != camera.DefaultParameters().Picture.Size {
		t.Errorf("Expected untouched picture size, got %s", p.Picture.Size)
	}
	saved, err := config.LoadCameraParameters(env.paramsFile)
	if err != nil {
		t.Fatalf("LoadCameraParameters failed: %v", err)
	}
	if saved.Picture.JPEGQuality != 75 {
		t.Errorf("Expected saved quality 75, got %d", saved.Picture.JPEGQuality)
	}
}

func TestParametersPatchRejected(t *testing.T) {
	env := newTestEnv(t)

	for _, flat := range []string{"preview-size=big", "jpeg-quality", "picture-size=321x240"} {
		resp := env.api.Patch("/api/camera/parameters", authHeader, map[string]any{"flattened": flat})
		if resp.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for %q, got %d", flat, resp.Code)
		}
	}
	if got := env.cam.GetParameters(); got.Flatten() != camera.DefaultParameters().Flatten() {
		t.Errorf("Expected defaults kept, got %s", got.Flatten())
	}
}

func TestPreviewSnapshotBeforeFirstFrame(t *testing.T) {
	env := newTestEnv(t)

	if resp := env.api.Get("/api/camera/preview.jpg", authHeader); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	logging.Initialize(logging.Config{Level: "debug", Format: "text"})
	env := newTestEnv(t)

	logging.GetLogger("api").Info("log endpoint marker")

	resp := env.api.Get("/api/logs?limit=50", authHeader)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var logs struct {
		Entries []logging.LogEntry `json:"entries"`
	}
	decode(t, resp.Body.String(), &logs)

	found := false
	for _, e := range logs.Entries {
		if e.Message == "log endpoint marker" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected marker in %d log entries", len(logs.Entries))
	}
}

func TestLEDRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp := env.api.Post("/api/leds", authHeader, map[string]any{"type": "system", "enabled": true, "pattern": "blink"})
	if resp.Code != http.StatusNoContent && resp.Code != http.StatusOK {
		t.Fatalf("Expected success, got %d: %s", resp.Code, resp.Body.String())
	}
	if env.leds.last != "system:true:blink" {
		t.Errorf("Expected system:true:blink, got %s", env.leds.last)
	}

	resp = env.api.Post("/api/leds", authHeader, map[string]any{"type": "user", "enabled": true})
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown LED, got %d", resp.Code)
	}

	resp = env.api.Post("/api/leds", authHeader, map[string]any{"type": "system", "enabled": true, "pattern": "strobe"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad pattern, got %d", resp.Code)
	}

	var caps LEDCapabilities
	decode(t, env.api.Get("/api/leds/capabilities", authHeader).Body.String(), &caps)
	if len(caps.AvailableTypes) != 1 || caps.AvailableTypes[0] != "system" {
		t.Errorf("Expected types [system], got %v", caps.AvailableTypes)
	}
}

func TestPrometheusWithoutAuth(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.server.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestConsoleServedAtRoot(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.server.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Failed to load console: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected text/html, got %q", ct)
	}

	resp, err = http.Get(ts.URL + "/api/nope")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown API path, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.server.GetMux())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/camera/parameters", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Preflight failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected allow origin *, got %q", got)
	}
}

func TestSSEEventsStream(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.server.GetMux())
	defer ts.Close()

	credentials := base64.StdEncoding.EncodeToString([]byte(testUser + ":" + testPass))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events?auth="+credentials, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				lines <- line
			}
		}
	}()

	select {
	case line := <-lines:
		if !strings.Contains(line, `"state":"stopped"`) {
			t.Errorf("Expected initial preview state, got %s", line)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected initial preview state event")
	}

	env.bus.Publish(events.DeviceEvent{Action: "remove", DevicePath: "/dev/video0"})

	select {
	case line := <-lines:
		if !strings.Contains(line, `"device_path":"/dev/video0"`) {
			t.Errorf("Expected device event, got %s", line)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected device event")
	}
}
