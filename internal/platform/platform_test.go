package platform

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(classify("kick", nil))

	unknownMember := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember},
	}
	err := classify("kick", unknownMember)
	assert.ErrorIs(err, ErrNotFound)
	assert.NotErrorIs(err, ErrForbidden)
	var restErr *discordgo.RESTError
	assert.ErrorAs(err, &restErr)

	missingPerms := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
	}
	assert.ErrorIs(classify("ban", missingPerms), ErrForbidden)

	byStatus := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"}}
	assert.ErrorIs(classify("delete message", byStatus), ErrNotFound)

	other := errors.New("connection reset")
	err = classify("timeout", other)
	assert.ErrorIs(err, other)
	assert.False(IsIgnorable(err))
	assert.Contains(err.Error(), "timeout")

	assert.True(IsIgnorable(classify("x", discordgo.ErrStateNotFound)))
}

func TestHighestPosition(t *testing.T) {
	positions := map[string]int{"a": 3, "b": 7, "c": 1}
	assert.Equal(t, 7, highestPosition([]string{"a", "b", "c"}, positions))
	assert.Equal(t, 0, highestPosition(nil, positions))
	assert.Equal(t, 0, highestPosition([]string{"unknown"}, positions))
}
