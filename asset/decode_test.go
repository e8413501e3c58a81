package asset_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devblok/orbiter/asset"
	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/utility/kar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shaderDoc struct {
	Name       string         `json:"name" yaml:"name" toml:"name"`
	ShaderType gfx.ShaderKind `json:"shaderType" yaml:"shaderType" toml:"shaderType"`
}

func loadOne(t *testing.T, files map[string]string, locator string, strategy asset.Strategy) *asset.Task {
	t.Helper()
	q := asset.NewQueue(&memFetcher{files: files})
	task, err := q.Load(locator, strategy, nil)
	require.NoError(t, err)
	require.NoError(t, q.Run(context.Background()))
	return task
}

func TestDocumentFormats(t *testing.T) {
	files := map[string]string{
		"s.json": `{"name": "earth", "shaderType": "x-shader/x-vertex"}`,
		"s.yaml": "name: earth\nshaderType: vertex\n",
		"s.toml": "name = \"earth\"\nshaderType = \"vert\"\n",
	}
	for locator := range files {
		task := loadOne(t, files, locator, asset.Document)
		require.False(t, task.Failed(), "%s: %v", locator, task.Err())

		var doc shaderDoc
		require.NoError(t, task.Document().Decode(&doc), locator)
		assert.Equal(t, "earth", doc.Name, locator)
		assert.Equal(t, gfx.VertexShader, doc.ShaderType, locator)
	}
}

func TestMalformedDocumentFails(t *testing.T) {
	task := loadOne(t, map[string]string{"bad.json": `{"name": `}, "bad.json", asset.Document)
	assert.True(t, task.Failed())
	assert.Nil(t, task.Document())
}

func TestImageStrategy(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.NRGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	files := map[string]string{"earth.png": buf.String(), "fake.png": "not really a png"}

	task := loadOne(t, files, "earth.png", asset.Image)
	require.False(t, task.Failed(), "%v", task.Err())
	assert.Equal(t, image.Rect(0, 0, 4, 2), task.Image().Bounds())

	task = loadOne(t, files, "fake.png", asset.Image)
	assert.True(t, errors.Is(task.Err(), asset.ErrNotImage))
}

func TestValidateLocator(t *testing.T) {
	for _, ok := range []string{"scene.json", "shaders/earth.vert", "./textures/earth.png"} {
		assert.NoError(t, asset.ValidateLocator(ok), ok)
	}
	for _, bad := range []string{"", "/etc/passwd", "../x", "a/../../x", "http://host/x", "a\x00b", "x?y=1", "."} {
		assert.True(t, errors.Is(asset.ValidateLocator(bad), asset.ErrInvalidLocator), bad)
	}
}

func TestDirFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shaders"), 0o755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "shaders", "a.vert"), []byte("src"), 0o644))

	f := asset.DirFetcher{Root: dir}
	rc, err := f.Fetch(context.Background(), "shaders/a.vert")
	require.NoError(t, err)
	data, _ := ioutil.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "src", string(data))

	_, err = f.Fetch(context.Background(), "shaders/none.vert")
	assert.Equal(t, asset.ErrNotFound, err)

	list, err := f.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"shaders/a.vert"}, list)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assets/scene.json":
			w.Write([]byte(`{}`))
		case "/assets/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := asset.NewHTTPFetcher(srv.URL+"/assets", 0)
	require.NoError(t, err)

	rc, err := f.Fetch(context.Background(), "scene.json")
	require.NoError(t, err)
	rc.Close()

	_, err = f.Fetch(context.Background(), "nope.json")
	assert.Equal(t, asset.ErrNotFound, err)

	_, err = f.Fetch(context.Background(), "broken")
	var status *asset.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusInternalServerError, status.Code)

	_, err = asset.NewHTTPFetcher("ftp://example.com", 0)
	assert.Error(t, err)
}

func TestArchiveFetcher(t *testing.T) {
	builder, err := kar.NewBuilder(kar.Header{Author: "test", Version: 1})
	require.NoError(t, err)
	defer builder.Close()
	require.NoError(t, builder.Add("shaders/earth.frag", strings.NewReader("void main() {}")))

	var buf bytes.Buffer
	_, err = builder.WriteTo(&buf)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "assets.kar")
	require.NoError(t, ioutil.WriteFile(path, buf.Bytes(), 0o644))

	f, err := asset.OpenArchive(path)
	require.NoError(t, err)
	defer f.Close()

	q := asset.NewQueue(f)
	found, err := q.Load("shaders/earth.frag", asset.Text, nil)
	require.NoError(t, err)
	missing, err := q.Load("shaders/none.frag", asset.Text, nil)
	require.NoError(t, err)
	require.NoError(t, q.Run(context.Background()))

	assert.Equal(t, "void main() {}", found.Text())
	assert.True(t, errors.Is(missing.Err(), asset.ErrNotFound))

	names, err := f.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"shaders/earth.frag"}, names)
}
