package descriptor

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/cruciblehq/eosimg/internal/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
schema: 1
name: final
intermediate: import
args:
  image: BASE
  version: VERSION
from: ${BASE}:${VERSION}
env:
  - name: A
    value: "1"
expose:
  - { port: 22, protocol: tcp }
volumes:
  - /data
files:
  - source: payload.txt
    dest: /etc/payload.txt
init: /sbin/init
`

func testFS(descriptor string) fstest.MapFS {
	return fstest.MapFS{
		"d.yaml":      {Data: []byte(descriptor)},
		"payload.txt": {Data: []byte("payload")},
	}
}

func TestDefault(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, d.Schema)
	assert.Equal(t, "ceos", d.Name)
	assert.Equal(t, "import", d.Intermediate)
	assert.Equal(t, []string{
		"INTFTYPE=eth",
		"ETBA=1",
		"SKIP_ZEROTOUCH_BARRIER_IN_SYSDBINIT=1",
		"CEOS=1",
		"EOS_PLATFORM=ceoslab",
		"container=docker",
	}, d.Environ())
	assert.Equal(t, []string{"/mnt/flash"}, d.Volumes)

	ports := d.PortSet()
	assert.Len(t, ports, 8)
	for _, p := range []string{"21/tcp", "22/tcp", "80/tcp", "443/tcp", "4443/tcp", "6030/tcp", "830/tcp", "161/udp"} {
		assert.Contains(t, ports, p)
	}

	require.Len(t, d.Files, 1)
	assert.Equal(t, "/usr/lib/python2.7/site-packages/Pci.py", d.Files[0].Dest)

	payload, err := d.Overlay(d.Files[0])
	require.NoError(t, err)
	assert.Contains(t, string(payload), "class Address")
}

func TestDefaultIsShared(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCommandReassertsEnvironment(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	cmd := d.Command()
	require.Equal(t, "/sbin/init", cmd[0])
	require.Len(t, cmd, len(d.Env)+1)
	for i, e := range d.Environ() {
		assert.Equal(t, "systemd.setenv="+e, cmd[i+1])
	}
}

func TestBuildArgsAndBaseRef(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	base := image.Ref{Name: "import_1700000000", Tag: "4.1.0"}
	args := d.BuildArgs(base)
	assert.Equal(t, map[string]string{"BASE_IMAGE": "import_1700000000", "EOS_VERSION": "4.1.0"}, args)

	ref, err := d.BaseRef(args)
	require.NoError(t, err)
	assert.Equal(t, base, ref)
}

func TestBaseRefUndefinedArg(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	_, err = d.BaseRef(map[string]string{"BASE_IMAGE": "import_1"})
	require.ErrorIs(t, err, ErrUndefinedArg)
}

func TestLoad(t *testing.T) {
	d, err := Load(testFS(minimal), "d.yaml")
	require.NoError(t, err)

	assert.Equal(t, "final", d.Name)
	assert.Equal(t, []string{"/sbin/init", "systemd.setenv=A=1"}, d.Command())
	assert.Equal(t, map[string]struct{}{"/data": {}}, d.VolumeSet())
	assert.Equal(t, 0644, int(d.Files[0].Perm()))
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
	}{
		{"wrong schema", "schema: 1", "schema: 2"},
		{"missing name", "name: final", "name: \"\""},
		{"bad protocol", "protocol: tcp", "protocol: sctp"},
		{"port out of range", "port: 22", "port: 70000"},
		{"relative volume", "- /data", "- data"},
		{"relative dest", "dest: /etc/payload.txt", "dest: etc/payload.txt"},
		{"missing overlay", "source: payload.txt", "source: missing.txt"},
		{"env name with equals", "name: A", "name: A=B"},
		{"unresolvable from", "from: ${BASE}:${VERSION}", "from: ${OTHER}:${VERSION}"},
		{"same arg names", "version: VERSION", "version: BASE"},
		{"relative init", "init: /sbin/init", "init: init"},
		{"malformed yaml", "schema: 1", "schema: [1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := strings.Replace(minimal, tt.from, tt.to, 1)
			require.NotEqual(t, minimal, src)

			_, err := Load(testFS(src), "d.yaml")
			require.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "d.yaml")
	require.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestFilePerm(t *testing.T) {
	assert.Equal(t, 0644, int(File{}.Perm()))
	assert.Equal(t, 0755, int(File{Mode: 0755}.Perm()))
}
