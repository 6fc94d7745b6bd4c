package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKnownPairs(t *testing.T) {
	for _, ch := range All() {
		evs, ok := Events(ch)
		require.True(t, ok)
		require.NotEmpty(t, evs)
		for _, ev := range evs {
			assert.NoError(t, Validate(ch, ev))
		}
	}
}

func TestValidateRejectsUnknown(t *testing.T) {
	assert.Error(t, Validate("payments", EventNewOrder))
	assert.Error(t, Validate(Orders, EventNotification))
	assert.Error(t, Validate(Notifications, EventAnalyticsUpdate))
	assert.Error(t, Validate(Orders, "new_orderr"))
}
