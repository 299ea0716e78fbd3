package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hanpama/rendergraph/internal/planpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err = run(args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestHelp(t *testing.T) {
	out, _, err := runCLI(t, "help", "compile")
	require.NoError(t, err)
	assert.Contains(t, out, "compile FLAGS")

	out, _, err = runCLI(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "COMMANDS:")

	_, _, err = runCLI(t, "help", "nope")
	assert.EqualError(t, err, `unknown help topic "nope"`)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, err := runCLI(t, "frobnicate")
	assert.EqualError(t, err, `unknown command "frobnicate"`)
	assert.Contains(t, stderr, "USAGE:")

	_, _, err = runCLI(t)
	assert.EqualError(t, err, "missing command")
}

func TestCompileJSON(t *testing.T) {
	out, _, err := runCLI(t, "compile", "-graph.root", filepath.Join("testdata", "good"), "-graph.entry", "frame")
	require.NoError(t, err)

	var plan struct {
		Entry       string
		Submissions []struct {
			ID       int
			Queue    string
			WaitsFor []int
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, "frame", plan.Entry)
	require.Len(t, plan.Submissions, 3)
	var queues []string
	for _, s := range plan.Submissions {
		queues = append(queues, s.Queue)
	}
	assert.Equal(t, []string{"transfer", "compute", "graphics"}, queues)
}

func TestCompileProto(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "plan.pb")
	_, _, err := runCLI(t, "compile",
		"-graph.root", filepath.Join("testdata", "good"),
		"-graph.entry", "frame",
		"-format", "proto",
		"-out", outFile)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	m, err := planpb.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "frame", m.Get(m.Descriptor().Fields().ByName("entry")).String())
}

func TestCompile_Flags(t *testing.T) {
	_, _, err := runCLI(t, "compile")
	assert.EqualError(t, err, "-graph.entry is required")

	_, _, err = runCLI(t, "compile", "-graph.entry", "frame", "-format", "yaml")
	assert.EqualError(t, err, `unknown format "yaml"`)
}

func TestCompile_Verbose(t *testing.T) {
	_, stderr, err := runCLI(t, "compile", "-v", "-graph.root", filepath.Join("testdata", "good"), "-graph.entry", "frame")
	require.NoError(t, err)
	assert.Contains(t, stderr, "level=DEBUG")
	assert.Contains(t, stderr, "compiled graph")
}

func TestCheck(t *testing.T) {
	out, _, err := runCLI(t, "check", "-graph.root", filepath.Join("testdata", "good"), "-graph.entry", "frame")
	require.NoError(t, err)
	assert.Equal(t, "frame: 3 operation(s), 2 connection(s), 2 package(s)\n", out)

	_, stderr, err := runCLI(t, "check", "-graph.root", filepath.Join("testdata", "bad"), "-graph.entry", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "violation(s) found")
	assert.Contains(t, stderr, "[nonexistent-type]")
	assert.Contains(t, stderr, "main.hcl:5")
}

func TestProtoSchema(t *testing.T) {
	out, _, err := runCLI(t, "proto-schema")
	require.NoError(t, err)
	assert.Contains(t, out, "message Plan {")
}
