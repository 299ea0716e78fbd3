package language_test

import (
	"errors"
	"testing"

	"github.com/hanpama/rendergraph/internal/language"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `
version = 1

import "common" {}

type "GBuffer" "record" {
  field "albedo" { type = "Image" }
  field "params" { type = "common.Params" }
}

type "Target" "render_target" {
  color "0" { type = "Image" }
  depth { type = "Image" }
}

operation "geometry" {
  queue = "graphics"
  port "gbuffer" {
    role           = "producer"
    type           = "GBuffer"
    writes         = { "params" = ["transfer"], "albedo" = ["color_attachment_output"] }
    ensures_layout = { "albedo" = "color_attachment" }
  }
}

operation "lighting" {
  queue = "compute"
  port "gbuffer" {
    role            = "consumer"
    type            = "GBuffer"
    reads           = ["compute_shader"]
    requires_layout = "shader_read_only"
  }
}

connection {
  from = "geometry.gbuffer"
  to   = "lighting.gbuffer"
}
`

func TestParse_Document(t *testing.T) {
	doc, err := language.Parse("main.hcl", []byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Imports, 1)
	assert.Equal(t, "common", doc.Imports[0].Package)

	require.Len(t, doc.Types, 2)
	gbuf := doc.Types[0]
	assert.Equal(t, language.KindRecord, gbuf.Kind)
	require.Len(t, gbuf.Fields, 2)
	assert.Equal(t, "params", gbuf.Fields[1].Name)
	assert.Equal(t, "common.Params", gbuf.Fields[1].Type)
	assert.Equal(t, "main.hcl", gbuf.Position.File)

	target := doc.Types[1]
	assert.Equal(t, language.KindRenderTarget, target.Kind)
	require.Len(t, target.Colors, 1)
	assert.Equal(t, "0", target.Colors[0].Name)
	require.NotNil(t, target.Depth)

	require.Len(t, doc.Operations, 2)
	producer := doc.Operations[0].Ports[0]
	assert.Nil(t, producer.Writes.Whole)
	require.Len(t, producer.Writes.PerPath, 2)
	// keyed forms are ordered by key
	assert.Equal(t, "albedo", producer.Writes.PerPath[0].Path)
	assert.Equal(t, []string{"color_attachment_output"}, producer.Writes.PerPath[0].Stages)
	assert.Equal(t, "color_attachment", producer.EnsuresLayout.PerPath[0].Layout)

	consumer := doc.Operations[1].Ports[0]
	assert.Equal(t, []string{"compute_shader"}, consumer.Reads.Whole)
	assert.Equal(t, "shader_read_only", consumer.RequiresLayout.Whole)
	assert.Nil(t, consumer.RequiresLayout.PerPath)

	require.Len(t, doc.Connections, 1)
	assert.Equal(t, "geometry.gbuffer", doc.Connections[0].From)
	assert.Equal(t, "lighting.gbuffer", doc.Connections[0].To)
}

func TestParse_Errors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "syntax",
			src:     `version = `,
			wantErr: "main.hcl:1",
		},
		{
			name:    "unsupported version",
			src:     `version = 7`,
			wantErr: "Unsupported graph description version",
		},
		{
			name:    "missing version",
			src:     `type "A" "buffer" {}`,
			wantErr: "Missing required argument",
		},
		{
			name: "unknown kind",
			src: `version = 1
type "A" "texture" {}`,
			wantErr: "Unsupported type kind",
		},
		{
			name: "stage list of numbers",
			src: `version = 1
operation "a" {
  queue = "graphics"
  port "p" {
    role   = "producer"
    type   = "Buffer"
    writes = [[1]]
  }
}`,
			wantErr: "Invalid attribute value",
		},
		{
			name: "two depth attachments",
			src: `version = 1
type "T" "render_target" {
  depth { type = "Image" }
  depth { type = "Image" }
}`,
			wantErr: "Duplicate \"depth\" block",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := language.Parse("main.hcl", []byte(tc.src))
			require.Error(t, err)
			var perr *language.ParseError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
