package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-forecaster/backend/brief"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 3, 7,,12 ")
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 7, 12}, ids)

	ids, err = parseIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseIDs("3,x")
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	b := brief.ContentBrief{ID: "b1", Keyword: "crm software", Mode: brief.NewContent{}}

	var out bytes.Buffer
	require.NoError(t, write(&out, b, "yaml"))
	assert.Contains(t, out.String(), "keyword: crm software")
	assert.Contains(t, out.String(), "mode: new")

	out.Reset()
	require.NoError(t, write(&out, b, "json"))
	assert.Contains(t, out.String(), `"mode": "new"`)
}

func TestCLICommands(t *testing.T) {
	app := newCLI()
	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"serve", "score", "brief"}, names)
}
