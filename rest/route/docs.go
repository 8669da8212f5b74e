package route

import (
	"bytes"
	"strings"

	dbModel "github.com/evergreen-ci/restadmin/model"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
)

const docTemplate = `### The APIs include:

> ` + "`GET`" + ` {app}/{model} ===> list all ` + "`{plural}`" + ` page by page;

> ` + "`POST`" + ` {app}/{model} ===> create a new ` + "`{singular}`" + `

> ` + "`GET`" + ` {app}/{model}/123 ===> return the details of the ` + "`{singular}`" + ` 123

> ` + "`PATCH`" + ` {app}/{model}/123 and ` + "`PUT`" + ` {app}/{model}/123 ==> update the ` + "`{singular}`" + ` 123

> ` + "`DELETE`" + ` {app}/{model}/123 ===> delete the ` + "`{singular}`" + ` 123

> ` + "`OPTIONS`" + ` {app}/{model} ===> show the supported verbs regarding endpoint ` + "`{app}/{model}`" + `

> ` + "`OPTIONS`" + ` {app}/{model}/123 ===> show the supported verbs regarding endpoint ` + "`{app}/{model}/123`" + `
`

// GenerateDocs returns the Markdown description of the endpoints served
// for a model.
func GenerateDocs(m *dbModel.Model) string {
	return strings.NewReplacer(
		"{app}", m.AppLabel,
		"{model}", m.Name,
		"{singular}", m.VerboseName,
		"{plural}", m.VerboseNamePlural,
	).Replace(docTemplate)
}

// RenderDocs converts generated Markdown to sanitized HTML.
func RenderDocs(markdown string) ([]byte, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return nil, errors.Wrap(err, "rendering docs")
	}

	return bluemonday.UGCPolicy().SanitizeBytes(buf.Bytes()), nil
}
