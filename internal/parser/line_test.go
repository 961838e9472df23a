package parser_test

import (
	"testing"

	"github.com/metrics-ops/ssh-log-exporter/internal/metric"
	"github.com/metrics-ops/ssh-log-exporter/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T, readers []parser.ColumnReader) *parser.LineParser {
	t.Helper()

	p, err := parser.New(readers, metric.Labels{"environment": "prod", "host": "h1"})
	require.NoError(t, err)

	return p
}

// S1: Format [{ip: label}, {bytes: number}]; line "10.0.0.1 512".
func TestParseScenarioS1(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Label, Name: "ip"},
		{Kind: parser.Number, Name: "bytes"},
	})

	result, err := p.Parse("10.0.0.1 512")
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", result.Labels["ip"])
	assert.Equal(t, "prod", result.Labels["environment"])
	assert.Equal(t, "h1", result.Labels["host"])
	require.Len(t, result.Values, 1)
	assert.Equal(t, "bytes", result.Values[0].Name)
	assert.InDelta(t, 512.0, result.Values[0].Value, 0)
}

// S2: same schema, "10.0.0.1 notanumber" -> parse error.
func TestParseScenarioS2(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Label, Name: "ip"},
		{Kind: parser.Number, Name: "bytes"},
	})

	_, err := p.Parse("10.0.0.1 notanumber")
	require.Error(t, err)
	require.ErrorIs(t, err, parser.ErrParse)
}

// S3: clf_number on token "-" contributes 0.0, not an error.
func TestParseScenarioS3(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.CLFNumber, Name: "bytes"},
	})

	result, err := p.Parse("-")
	require.NoError(t, err)
	require.Len(t, result.Values, 1)
	assert.InDelta(t, 0.0, result.Values[0].Value, 0)
}

func TestParseTooFewTokens(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Label, Name: "ip"},
		{Kind: parser.Number, Name: "bytes"},
	})

	_, err := p.Parse("10.0.0.1")
	require.ErrorIs(t, err, parser.ErrParse)
}

func TestParseExtraTrailingTokensIgnored(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Label, Name: "ip"},
	})

	result, err := p.Parse("10.0.0.1 extra stuff here")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", result.Labels["ip"])
}

func TestParseNullSkipsToken(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Null},
		{Kind: parser.Label, Name: "ip"},
	})

	result, err := p.Parse("ignored 10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", result.Labels["ip"])
}

func TestParseRequestHeader(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.RequestHeader},
	})

	result, err := p.Parse(`"GET /index.html HTTP/1.1"`)
	require.NoError(t, err)
	assert.Equal(t, "GET", result.Labels["request_method"])
	assert.Equal(t, "/index.html", result.Labels["request_path"])
	assert.Equal(t, "HTTP/1.1", result.Labels["request_protocol"])
}

func TestParseRequestHeaderMalformed(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.RequestHeader},
	})

	_, err := p.Parse(`"GET /index.html"`)
	require.ErrorIs(t, err, parser.ErrParse)
}

func TestParseCLFDate(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.CLFDate},
		{Kind: parser.Label, Name: "ip"},
	})

	result, err := p.Parse("[10/Oct/2000:13:55:36 -0700] 10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", result.Labels["ip"])
	assert.Empty(t, result.Values)
}

func TestParseCLFDateMalformed(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.CLFDate},
	})

	_, err := p.Parse("[not-a-date]")
	require.ErrorIs(t, err, parser.ErrParse)
}

func TestBaseLabelsWinOverSchema(t *testing.T) {
	t.Parallel()

	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Label, Name: "host"},
	})

	result, err := p.Parse("spoofed-host")
	require.NoError(t, err)
	assert.Equal(t, "h1", result.Labels["host"])
}

func TestNewRequiresEnvironmentBaseLabel(t *testing.T) {
	t.Parallel()

	_, err := parser.New(nil, metric.Labels{"host": "h1"})
	require.Error(t, err)
}

func TestSubmitIncrementsLinesParsedAndParserErrors(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Label, Name: "ip"},
		{Kind: parser.Number, Name: "bytes"},
	})
	registerFamily(t, reg, "bytes", metric.Counter)

	require.NoError(t, p.Submit(reg, "10.0.0.1 512"))
	require.Error(t, p.Submit(reg, "10.0.0.1 notanumber"))

	var sb stringsBuilder

	require.NoError(t, reg.SnapshotText(&sb))
	out := sb.String()
	assert.Contains(t, out, `lines_parsed{environment="prod",host="h1"} 1`)
	assert.Contains(t, out, `parser_errors{environment="prod",host="h1"} 1`)
	assert.Contains(t, out, `bytes{environment="prod",host="h1",ip="10.0.0.1"} 512`)
}

// A line with two Number columns where the first value is valid and the
// second is a negative Counter contribution must not partially update
// the registry: "a" must stay untouched, and the line counts only as a
// parser_errors increment.
func TestSubmitRejectsLineAtomicallyOnLaterInvalidValue(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	p := newTestParser(t, []parser.ColumnReader{
		{Kind: parser.Number, Name: "a"},
		{Kind: parser.Number, Name: "b"},
	})
	registerFamily(t, reg, "a", metric.Counter)
	registerFamily(t, reg, "b", metric.Counter)

	err := p.Submit(reg, "5 -3")
	require.Error(t, err)
	require.ErrorIs(t, err, metric.ErrNegativeCounter)

	var sb stringsBuilder

	require.NoError(t, reg.SnapshotText(&sb))
	out := sb.String()
	assert.NotContains(t, out, `a{environment="prod",host="h1"}`)
	assert.NotContains(t, out, `b{environment="prod",host="h1"}`)
	assert.Contains(t, out, `parser_errors{environment="prod",host="h1"} 1`)
}
