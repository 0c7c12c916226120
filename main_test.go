package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestProvidersCommand(t *testing.T) {
	code, out, _ := runCLI("providers")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "aws")
	assert.Contains(t, out, "gcp")
	assert.Contains(t, out, "compute, dns, iam, logging, queue, secret_manager, storage")
}

func TestOperationsCommand(t *testing.T) {
	code, out, _ := runCLI("operations", "storage")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "storage:\n")
	assert.Contains(t, out, "  create_bucket\n")
	assert.NotContains(t, out, "get_secret")

	code, _, stderr := runCLI("operations", "mail")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, `unknown service "mail"`)
}

func TestInvokeRequiresProviderAndService(t *testing.T) {
	code, _, stderr := runCLI("list_buckets")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, "--provider and --service are required")

	code, _, stderr = runCLI("--provider", "aws", "--service", "storage")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, "no operation given")
}

func TestUnsupportedProviderExitCode(t *testing.T) {
	code, _, stderr := runCLI("--provider", "azure", "--service", "storage", "list_buckets")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, `provider "azure" is not supported`)
}

func TestBadFlagsExitCode(t *testing.T) {
	code, _, _ := runCLI("--no-such-flag")
	assert.Equal(t, exitConfigError, code)

	code, _, stderr := runCLI("--provider", "aws", "--service", "storage", "--config", "[1]", "list_buckets")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, "--config must be a JSON object")
}

func TestParseConfig(t *testing.T) {
	raw, err := parseConfig(`{"region_name":"us-east-1","max":3,"debug":true,"skip":null}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"region_name": "us-east-1", "max": "3", "debug": "true"}, raw)

	raw, err = parseConfig("  ")
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = parseConfig(`{"nested":{"a":1}}`)
	assert.True(t, errors.Is(err, cloudjack.ErrConfig))
}

func TestParseKwargs(t *testing.T) {
	kwargs, err := parseKwargs(`{"prefix":"logs/","max_messages":5}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"prefix": "logs/", "max_messages": float64(5)}, kwargs)

	_, err = parseKwargs(`not json`)
	assert.True(t, errors.Is(err, cloudjack.ErrInvalidArgument))
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, nil))
	assert.Equal(t, "OK\n", buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, "s3cr3t"))
	assert.Equal(t, "s3cr3t\n", buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, []string{"a", "b"}))
	assert.Equal(t, "[\n  \"a\",\n  \"b\"\n]\n", buf.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitConfigError, exitCode(cloudjack.Errorf(cloudjack.KindConfig, "x")))
	assert.Equal(t, exitConfigError, exitCode(cloudjack.Errorf(cloudjack.KindUnsupportedService, "x")))
	assert.Equal(t, exitError, exitCode(cloudjack.Errorf(cloudjack.KindNotFound, "x")))
	assert.Equal(t, exitError, exitCode(errors.New("plain")))
}
