package service_test

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/readhaven/cover-services/models/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshResult(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	hostname, _ := os.Hostname()
	assert.Equal(t, "9780316769488", result.BookKey)
	assert.Equal(t, hostname, result.Host)
	assert.Equal(t, os.Getpid(), result.Pid)
	assert.Equal(t, 0, result.Attempt)
	assert.Empty(t, result.Errors)
	assert.False(t, result.Started())
	assert.False(t, result.Finished())
}

func TestRefreshResultStartFinish(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	assert.Equal(t, time.Duration(0), result.RunTime())

	result.Start()
	assert.True(t, result.Started())
	assert.False(t, result.Finished())
	assert.False(t, result.Succeeded())

	result.Finish()
	assert.True(t, result.Finished())
	assert.True(t, result.Succeeded())
	assert.True(t, result.RunTime() >= 0)
	assert.Equal(t, result.FinishedAt.Sub(result.StartedAt), result.RunTime())
}

func TestRefreshResultAddError(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	assert.False(t, result.HasErrors())

	result.AddError(service.NewProcessingError("9780316769488", "GOOGLE_BOOKS",
		"request timed out", false))
	assert.True(t, result.HasErrors())
	assert.False(t, result.HasFatalErrors())

	result.Finish()
	assert.False(t, result.Succeeded())
}

func TestRefreshResultErrorCap(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	for i := 0; i < 40; i++ {
		result.AddError(service.NewProcessingError("9780316769488", "OPEN_LIBRARY",
			fmt.Sprintf("attempt %d timed out", i), false))
	}
	assert.Equal(t, 30, len(result.Errors))

	// Fatal errors land even when the cap has been hit.
	result.AddError(service.NewProcessingError("9780316769488", "",
		"book has no usable identifier", true))
	assert.Equal(t, 31, len(result.Errors))
	assert.True(t, result.HasFatalErrors())
}

func TestRefreshResultFatalErrors(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	result.AddError(service.NewProcessingError("9780316769488", "GOOGLE_BOOKS",
		"request timed out", false))
	result.AddError(service.NewProcessingError("9780316769488", "",
		"book has no usable identifier", true))
	result.AddError(service.NewProcessingError("9780316769488", "covers/9780316769488.jpg",
		"storage target rejected write", true))

	fatals := result.FatalErrors()
	require.Equal(t, 2, len(fatals))
	assert.True(t, result.HasFatalErrors())
	expected := "book has no usable identifier | storage target rejected write"
	assert.Equal(t, expected, result.FatalErrorMessage())
}

func TestRefreshResultClearErrors(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	result.AddError(service.NewProcessingError("9780316769488", "GOOGLE_BOOKS",
		"request timed out", false))
	require.True(t, result.HasErrors())

	result.ClearErrors()
	assert.False(t, result.HasErrors())
	assert.NotNil(t, result.Errors)
}

func TestRefreshResultReset(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	result.Attempt = 2
	result.Start()
	result.AddError(service.NewProcessingError("9780316769488", "GOOGLE_BOOKS",
		"request timed out", false))
	result.Finish()

	result.Reset()
	assert.Equal(t, 2, result.Attempt)
	assert.Equal(t, "9780316769488", result.BookKey)
	assert.Equal(t, "", result.Host)
	assert.Equal(t, 0, result.Pid)
	assert.False(t, result.Started())
	assert.False(t, result.Finished())
	assert.False(t, result.HasErrors())
}

func TestRefreshResultFromJSON(t *testing.T) {
	result := service.NewRefreshResult("9780316769488")
	result.Attempt = 1
	result.Start()
	result.AddError(service.NewProcessingError("9780316769488", "GOOGLE_BOOKS",
		"request timed out", false))
	result.Finish()

	jsonData, err := result.ToJSON()
	require.Nil(t, err)

	restored, err := service.RefreshResultFromJSON(jsonData)
	require.Nil(t, err)
	assert.Equal(t, result.BookKey, restored.BookKey)
	assert.Equal(t, result.Attempt, restored.Attempt)
	assert.Equal(t, result.Host, restored.Host)
	assert.Equal(t, result.Pid, restored.Pid)
	require.Equal(t, 1, len(restored.Errors))
	assert.Equal(t, "request timed out", restored.Errors[0].Message)

	// The mutex comes back live. These would panic if it did not.
	assert.True(t, restored.HasErrors())
	assert.False(t, restored.Succeeded())
	restored.ClearErrors()

	_, err = service.RefreshResultFromJSON("not json")
	assert.NotNil(t, err)
}
