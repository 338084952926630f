package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"text/template"

	"github.com/samber/lo"
)

// Name of the rendered Dockerfile inside a build context.
const DockerfileName = "Dockerfile"

var dockerfileTemplate = template.Must(template.New(DockerfileName).Funcs(template.FuncMap{
	"json":  toJSON,
	"quote": strconv.Quote,
	"ports": func(ps []Port) string {
		return strings.Join(lo.Map(ps, func(p Port, _ int) string { return p.String() }), " ")
	},
	"context": ContextPath,
	"list":    func(v ...string) []string { return v },
}).Parse(`ARG {{ .Args.Image }}
ARG {{ .Args.Version }}
FROM {{ .From }}
{{ range .Env }}
ENV {{ .Name }}={{ quote .Value }}
{{- end }}
{{ if .Expose }}
EXPOSE {{ ports .Expose }}
{{- end }}
{{- range .Volumes }}
VOLUME {{ json (list .) }}
{{- end }}
{{ range .Files }}
COPY {{ context . }} {{ .Dest }}
{{- end }}

CMD {{ json $.Command }}
`))

// Renders the descriptor as a Dockerfile.
//
// Overlay files are referenced by their [ContextPath], so the build context
// must contain each payload under that path, carrying the file's [File.Perm]
// in its tar header.
func (d *Descriptor) Dockerfile() ([]byte, error) {
	var buf bytes.Buffer
	if err := dockerfileTemplate.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// Path of an overlay file inside a docker build context.
func ContextPath(f File) string {
	return path.Join("overlay", path.Clean("/"+f.Source))
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
