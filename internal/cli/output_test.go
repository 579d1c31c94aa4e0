package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/model"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data, func(w io.Writer) { fmt.Fprintln(w, "ignored") })
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"result": "success"}, resp.Data)
	assert.NotContains(t, buf.String(), "ignored")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CLIError{Code: "NOT_PARTICIPANT", Message: "GCAROL is not a participant", EntityID: "1"})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_PARTICIPANT", resp.Error.Code)
	assert.Equal(t, "GCAROL is not a participant", resp.Error.Message)
	assert.Equal(t, "1", resp.Error.EntityID)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("All challenges are on track.", nil))
	assert.Equal(t, "All challenges are on track.\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success(nil, func(w io.Writer) { fmt.Fprint(w, "rendered") }))
	assert.Equal(t, "rendered", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
	}

	details := map[string]any{"current_amount": 10}
	require.NoError(t, formatter.Error(CLIError{Code: "CONTRACT_ERROR", Message: "too early", Details: details}))
	assert.Empty(t, out.String())
	assert.Equal(t, "Error [CONTRACT_ERROR]: too early\n", errOut.String())

	errOut.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(CLIError{Code: "CONTRACT_ERROR", Message: "too early", Details: details}))
	assert.Contains(t, errOut.String(), "Details: map[current_amount:10]")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.VerboseLog("hidden %d", 1)
	assert.Empty(t, buf.String())

	formatter.Verbose = true
	formatter.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "bad config", errors.New("parse")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: bad config: parse", wrapped.Error())
}

func TestDescribe(t *testing.T) {
	domain := model.NewError(model.KindInsufficientBalance, "balance too low").WithEntity("3")
	got := describe(fmt.Errorf("contribute: %w", domain))
	assert.Equal(t, string(model.KindInsufficientBalance), got.Code)
	assert.Equal(t, "balance too low", got.Message)
	assert.Equal(t, "3", got.EntityID)

	got = describe(NewExitError(ExitCommandError, "invalid format"))
	assert.Equal(t, CodeCommandError, got.Code)

	got = describe(errors.New("relay unavailable"))
	assert.Equal(t, CodeFailure, got.Code)
	assert.Equal(t, "relay unavailable", got.Message)
}
