package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"i2cgui/interfaces"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type echoArgs struct {
	Text string `json:"text"`
}

type echoCommand struct{ h *fakeHandler }

func (c *echoCommand) CreateArgs() interfaces.CommandArgs { return &echoArgs{} }
func (c *echoCommand) Execute(args interfaces.CommandArgs) error {
	c.h.notifier.NotifyView("echo", args.(*echoArgs).Text)
	return nil
}

// fakeHandler stands in for the engine's root view model.
type fakeHandler struct {
	notifier interfaces.ViewNotifier
}

func (h *fakeHandler) CommandFor(view, command string) (interfaces.Command, error) {
	if view != "test" || command != "echo" {
		return nil, errNoCommandHandler
	}
	return &echoCommand{h}, nil
}

func (h *fakeHandler) NotifyViewTo(viewNotifier interfaces.ViewNotifier) {
	viewNotifier.NotifyView("status", "hello")
}

func readUpdate(t *testing.T, rw io.ReadWriter) ViewModelUpdate {
	t.Helper()
	msg, err := wsutil.ReadServerText(rw)
	assert.NoError(t, err)

	var u ViewModelUpdate
	assert.NoError(t, json.Unmarshal(msg, &u))
	return u
}

func TestWebServer(t *testing.T) {
	content := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<html></html>")}}
	s := NewWebServer("", content, log.NewTestLogger(t))
	h := &fakeHandler{notifier: s}
	s.ProvideViewCommandHandler(h)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	rsp, err := http.Get(srv.URL + "/index.html")
	assert.NoError(t, err)
	_ = rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)

	conn, br, _, err := ws.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/")
	assert.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if br == nil {
		br = bufio.NewReader(conn)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{br, conn}

	// every view model is sent on connect:
	u := readUpdate(t, rw)
	assert.Equal(t, "status", u.View)
	assert.Equal(t, "hello", u.ViewModel.(string))

	// unknown commands are dropped without closing the socket:
	assert.NoError(t, wsutil.WriteClientText(conn, []byte(`{"v":"nope","c":"echo","a":{}}`)))
	assert.NoError(t, wsutil.WriteClientText(conn, []byte(`{"v":"test","c":"echo","a":{"text":"hi"}}`)))

	u = readUpdate(t, rw)
	assert.Equal(t, "echo", u.View)
	assert.Equal(t, "hi", u.ViewModel.(string))
}
