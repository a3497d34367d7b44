package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appValidator "github.com/charlesng35/studynotify/pkg/validator"
)

func TestFormatValidationError(t *testing.T) {
	err := appValidator.ValidationErrors{
		{Field: "quiet_hours_start", Tag: "clock"},
		{Field: "timezone", Tag: "tz"},
		{Field: "max_notifications_per_day", Tag: "lte", Param: "50"},
		{Field: "kind", Tag: "required"},
	}

	msg := formatValidationError(err)
	require.Contains(t, msg, "quiet hours start must be a 24h HH:MM time")
	require.Contains(t, msg, "timezone must be an IANA time zone")
	require.Contains(t, msg, "max notifications per day must be at most 50")
	require.Contains(t, msg, "kind is required")
}

func TestFormatValidationErrorFallbacks(t *testing.T) {
	require.Equal(t, "invalid request payload", formatValidationError(nil))
	require.Equal(t, "invalid request payload", formatValidationError(appValidator.ValidationErrors{}))
}

func TestQueryParsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=10&offset=abc&created=true&flag=maybe", nil)

	require.Equal(t, 10, parseIntQuery(c, "limit", 25))
	require.Equal(t, 0, parseIntQuery(c, "offset", 0))
	require.Equal(t, 7, parseIntQuery(c, "missing", 7))

	created := parseBoolQuery(c, "created")
	require.NotNil(t, created)
	require.True(t, *created)
	require.Nil(t, parseBoolQuery(c, "flag"))
	require.Nil(t, parseBoolQuery(c, "missing"))
}

func TestGatherUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?user=user-1,user-2&user=user-1&user=%20", nil)

	require.Equal(t, []string{"user-1", "user-2"}, gatherUsers(c))
}
