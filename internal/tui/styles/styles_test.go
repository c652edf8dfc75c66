package styles

import (
	"testing"

	"github.com/mattsolo1/grove-core/tui/theme"
	"github.com/stretchr/testify/assert"
)

func TestStatusStyles(t *testing.T) {
	assert.Equal(t, Warning.Render("Running"), Status("Running").Render("Running"))
	assert.Equal(t, Success.Render("Completed"), Status("Completed").Render("Completed"))
	assert.Equal(t, Error.Render("Failed"), Status("Failed").Render("Failed"))
	assert.Equal(t, theme.DefaultTheme.Muted.Render("Pending"), Status("Pending").Render("Pending"))
}
