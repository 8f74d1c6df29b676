package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldr4GO/celebtwin/internal/domain"
)

func TestFind_SurroundedByLogs(t *testing.T) {
	out := "loading model...\n{\"success\":true,\"score\":0.82}\ndone\n"

	p, err := Find(out)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"score":0.82}`, string(p))
}

func TestFind_Unbalanced(t *testing.T) {
	_, err := Find(`{"success":true`)
	require.ErrorIs(t, err, domain.ErrUnbalancedPayload)
}

func TestFind_NoBrace(t *testing.T) {
	_, err := Find("query embeddings extracted successfully!\n")
	require.ErrorIs(t, err, domain.ErrNoPayloadFound)
	assert.Contains(t, domain.DetailsOf(err), "query embeddings")
}

func TestFind_NestedPayload(t *testing.T) {
	payload := `{"success":true,"results":[{"image_path":"a.jpg","similarity_score":0.9},` +
		`{"image_path":"b.jpg","similarity_score":0.8}],"meta":{"k":{"depth":3}}}`
	out := "query embeddings extracted successfully!\n" + payload + "\n"

	p, err := Find(out)
	require.NoError(t, err)
	assert.Equal(t, payload, string(p))
}

func TestFind_BracesInsideStrings(t *testing.T) {
	payload := `{"success":false,"error":"unexpected '}' in {config"}`

	p, err := Find("warn: retry\n" + payload)
	require.NoError(t, err)
	assert.Equal(t, payload, string(p))
}

func TestFind_EscapedQuoteInString(t *testing.T) {
	payload := `{"success":false,"error":"path \"C:\\tmp\\{x}\" missing"}`

	p, err := Find(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, string(p))
}

func TestFind_ProgressLineBeforePayload(t *testing.T) {
	p, err := Find("progress {50%}\n{\"success\":true}\n")
	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, string(p))
}

func TestFind_SkipsBraceBearingLogLine(t *testing.T) {
	out := "using providers {CPUExecutionProvider}\n{\"success\":true,\"similarity_score\":0.4}\n"

	p, err := Find(out)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"similarity_score":0.4}`, string(p))
}

func TestFind_Malformed(t *testing.T) {
	_, err := Find("result: {success: true}\n")
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
}

func TestFind_MalformedThenUnbalancedReportsMalformed(t *testing.T) {
	_, err := Find("{oops} then {\"success\":true")
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
}

func TestFind_FirstWellFormedObjectWins(t *testing.T) {
	out := `{"success":true,"similarity_score":0.1}` + "\n" + `{"success":true,"similarity_score":0.9}`

	p, err := Find(out)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"similarity_score":0.1}`, string(p))
}

func TestFind_PreviewIsBounded(t *testing.T) {
	_, err := Find(strings.Repeat("x", 5000))
	require.ErrorIs(t, err, domain.ErrNoPayloadFound)
	assert.Less(t, len(domain.DetailsOf(err)), 200)
}
