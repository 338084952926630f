package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/cruciblehq/eosimg/internal/descriptor"
	"github.com/cruciblehq/eosimg/internal/image"
	dockerclient "github.com/fsouza/go-dockerclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apiVersionPrefix = regexp.MustCompile(`^/v[0-9.]+`)

// Minimal engine API recording what it receives.
type fakeEngine struct {
	mu          sync.Mutex
	fail        map[string]string // Endpoint name to error message.
	streamFail  map[string]string // Endpoint name to error reported inside a 200 stream.
	images      map[string]bool
	importQuery url.Values
	imported    []byte
	buildQuery  url.Values
	context     map[string][]byte
	modes       map[string]int64
	removeQuery url.Values
}

func newFakeEngine(t *testing.T) (*fakeEngine, *httptest.Server) {
	t.Helper()
	e := &fakeEngine{
		fail:       make(map[string]string),
		streamFail: make(map[string]string),
		images:     make(map[string]bool),
		context:    make(map[string][]byte),
		modes:      make(map[string]int64),
	}
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return e, srv
}

func (e *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := apiVersionPrefix.ReplaceAllString(r.URL.Path, "")

	switch {
	case r.Method == http.MethodPost && path == "/images/create":
		e.serveImport(w, r)
	case r.Method == http.MethodPost && path == "/build":
		e.serveBuild(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/images/"):
		e.serveRemove(w, r, strings.TrimPrefix(path, "/images/"))
	default:
		http.Error(w, `{"message":"unexpected request"}`, http.StatusNotFound)
	}
}

func (e *fakeEngine) serveImport(w http.ResponseWriter, r *http.Request) {
	e.importQuery = r.URL.Query()
	e.imported, _ = io.ReadAll(r.Body)

	if msg, ok := e.fail["import"]; ok {
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	if msg, ok := e.streamFail["import"]; ok {
		writeStream(w, `{"status":"Importing"}`, streamError(msg))
		return
	}
	e.images[e.importQuery.Get("repo")+":"+e.importQuery.Get("tag")] = true
	writeStream(w, `{"status":"sha256:1234"}`)
}

func (e *fakeEngine) serveBuild(w http.ResponseWriter, r *http.Request) {
	e.buildQuery = r.URL.Query()

	tr := tar.NewReader(r.Body)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, _ := io.ReadAll(tr)
		e.context[hdr.Name] = data
		e.modes[hdr.Name] = hdr.Mode
	}

	if msg, ok := e.fail["build"]; ok {
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	if msg, ok := e.streamFail["build"]; ok {
		writeStream(w, `{"stream":"Step 1/9 : ARG BASE_IMAGE\n"}`, streamError(msg))
		return
	}
	e.images[e.buildQuery.Get("t")] = true
	writeStream(w, `{"stream":"Step 1/9 : ARG BASE_IMAGE\n"}`, `{"stream":"Successfully built 5678\n"}`)
}

func (e *fakeEngine) serveRemove(w http.ResponseWriter, r *http.Request, name string) {
	e.removeQuery = r.URL.Query()
	if msg, ok := e.fail["remove"]; ok {
		writeError(w, http.StatusConflict, msg)
		return
	}
	if !e.images[name] {
		writeError(w, http.StatusNotFound, "No such image: "+name)
		return
	}
	delete(e.images, name)
	writeStream(w, fmt.Sprintf(`[{"Untagged":%q}]`, name))
}

func writeStream(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// Encodes an error line the way the engine reports failures mid-stream.
func streamError(msg string) string {
	b, _ := json.Marshal(map[string]any{
		"errorDetail": map[string]string{"message": msg},
		"error":       msg,
	})
	return string(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

func newRuntime(t *testing.T, srv *httptest.Server) (*Runtime, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	rt, err := New(Config{Host: srv.URL, Output: &out})
	require.NoError(t, err)
	return rt, &out
}

func mustRef(t *testing.T, name, tag string) image.Ref {
	t.Helper()
	ref, err := image.NewRef(name, tag)
	require.NoError(t, err)
	return ref
}

func TestImport(t *testing.T) {
	engine, srv := newFakeEngine(t)
	rt, out := newRuntime(t, srv)

	archive := filepath.Join(t.TempDir(), "cEOS-lab.tar")
	require.NoError(t, os.WriteFile(archive, []byte("rootfs bytes"), 0644))

	err := rt.Import(context.Background(), archive, mustRef(t, "import_1700000000", "4.1.0"))
	require.NoError(t, err)

	assert.Equal(t, "-", engine.importQuery.Get("fromSrc"))
	assert.Equal(t, "import_1700000000", engine.importQuery.Get("repo"))
	assert.Equal(t, "4.1.0", engine.importQuery.Get("tag"))
	assert.Equal(t, []byte("rootfs bytes"), engine.imported)
	assert.Contains(t, out.String(), "sha256:1234")
}

func TestImportMissingArchive(t *testing.T) {
	_, srv := newFakeEngine(t)
	rt, _ := newRuntime(t, srv)

	err := rt.Import(context.Background(), filepath.Join(t.TempDir(), "missing.tar"), mustRef(t, "import_1", "4.1.0"))
	require.ErrorIs(t, err, ErrDocker)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestImportFails(t *testing.T) {
	engine, srv := newFakeEngine(t)
	engine.fail["import"] = "invalid tar header"
	rt, _ := newRuntime(t, srv)

	archive := filepath.Join(t.TempDir(), "bad.tar")
	require.NoError(t, os.WriteFile(archive, []byte("junk"), 0644))

	err := rt.Import(context.Background(), archive, mustRef(t, "import_1", "4.1.0"))
	require.ErrorIs(t, err, ErrDocker)
	assert.ErrorContains(t, err, "invalid tar header")
}

func TestImportStreamError(t *testing.T) {
	engine, srv := newFakeEngine(t)
	engine.streamFail["import"] = "archive/tar: invalid tar header"
	rt, out := newRuntime(t, srv)

	archive := filepath.Join(t.TempDir(), "bad.tar")
	require.NoError(t, os.WriteFile(archive, []byte("junk"), 0644))

	err := rt.Import(context.Background(), archive, mustRef(t, "import_1", "4.1.0"))
	require.ErrorIs(t, err, ErrDocker)
	assert.ErrorContains(t, err, "invalid tar header")
	assert.Contains(t, out.String(), "Importing")
	assert.Equal(t, []byte("junk"), engine.imported)
	assert.Empty(t, engine.images)
}

func TestBuild(t *testing.T) {
	engine, srv := newFakeEngine(t)
	rt, out := newRuntime(t, srv)

	d, err := descriptor.Default()
	require.NoError(t, err)

	args := d.BuildArgs(mustRef(t, "import_1700000000", "4.1.0"))
	err = rt.Build(context.Background(), d, args, mustRef(t, "ceos", "4.1.0"))
	require.NoError(t, err)

	assert.Equal(t, "ceos:4.1.0", engine.buildQuery.Get("t"))
	assert.Equal(t, descriptor.DockerfileName, engine.buildQuery.Get("dockerfile"))
	assert.Equal(t, "1", engine.buildQuery.Get("rm"))

	var gotArgs map[string]string
	require.NoError(t, json.Unmarshal([]byte(engine.buildQuery.Get("buildargs")), &gotArgs))
	assert.Equal(t, args, gotArgs)

	dockerfile, err := d.Dockerfile()
	require.NoError(t, err)
	assert.Equal(t, dockerfile, engine.context[descriptor.DockerfileName])

	pci, err := d.Overlay(d.Files[0])
	require.NoError(t, err)
	assert.Equal(t, pci, engine.context["overlay/Pci.py"])
	assert.Equal(t, int64(0644), engine.modes["overlay/Pci.py"])

	assert.Contains(t, out.String(), "Successfully built")
}

func TestBuildFails(t *testing.T) {
	engine, srv := newFakeEngine(t)
	engine.fail["build"] = "pull access denied for import_1"
	rt, _ := newRuntime(t, srv)

	d, err := descriptor.Default()
	require.NoError(t, err)

	err = rt.Build(context.Background(), d, d.BuildArgs(mustRef(t, "import_1", "4.1.0")), mustRef(t, "ceos", "4.1.0"))
	require.ErrorIs(t, err, ErrDocker)
	assert.ErrorContains(t, err, "pull access denied")
}

func TestBuildStreamError(t *testing.T) {
	engine, srv := newFakeEngine(t)
	engine.streamFail["build"] = "COPY failed: file not found in build context"
	rt, out := newRuntime(t, srv)

	d, err := descriptor.Default()
	require.NoError(t, err)

	err = rt.Build(context.Background(), d, d.BuildArgs(mustRef(t, "import_1", "4.1.0")), mustRef(t, "ceos", "4.1.0"))
	require.ErrorIs(t, err, ErrDocker)
	assert.ErrorContains(t, err, "COPY failed")
	assert.Contains(t, out.String(), "Step 1/9")
	assert.Empty(t, engine.images)
}

func TestRemoveImage(t *testing.T) {
	engine, srv := newFakeEngine(t)
	engine.images["import_1:4.1.0"] = true
	rt, _ := newRuntime(t, srv)

	err := rt.RemoveImage(context.Background(), mustRef(t, "import_1", "4.1.0"), true)
	require.NoError(t, err)

	assert.Equal(t, "1", engine.removeQuery.Get("force"))
	assert.Empty(t, engine.images)
}

func TestRemoveImageNotFound(t *testing.T) {
	_, srv := newFakeEngine(t)
	rt, _ := newRuntime(t, srv)

	err := rt.RemoveImage(context.Background(), mustRef(t, "import_1", "4.1.0"), true)
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestRemoveImageConflict(t *testing.T) {
	engine, srv := newFakeEngine(t)
	engine.images["import_1:4.1.0"] = true
	engine.fail["remove"] = "image is being used by running container"
	rt, _ := newRuntime(t, srv)

	err := rt.RemoveImage(context.Background(), mustRef(t, "import_1", "4.1.0"), false)
	require.ErrorIs(t, err, ErrDocker)
	assert.Empty(t, engine.removeQuery.Get("force"))
}

func TestBuildArgsSorted(t *testing.T) {
	got := buildArgs(map[string]string{"EOS_VERSION": "4.1.0", "BASE_IMAGE": "import_1"})
	assert.Equal(t, []dockerclient.BuildArg{
		{Name: "BASE_IMAGE", Value: "import_1"},
		{Name: "EOS_VERSION", Value: "4.1.0"},
	}, got)
}
