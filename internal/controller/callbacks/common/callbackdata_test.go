package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotTimeEncoding(t *testing.T) {
	start := at(20, 14)
	encoded := EncodeSlotTime(start)
	assert.Equal(t, "2026-10-20T1400", encoded)

	decoded, err := DecodeSlotTime(encoded, msk)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(start))

	_, err = DecodeSlotTime("2026-10-20 14:00", msk)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseIDAndValue(t *testing.T) {
	id, value, err := ParseIDAndValue("resched_time:42:2026-10-20T1400", RescheduleTime)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "2026-10-20T1400", value)

	for _, bad := range []string{"resched_time:42", "resched_time:x:2026-10-20", "resched_time:", "book_time:42:1"} {
		_, _, err := ParseIDAndValue(bad, RescheduleTime)
		assert.ErrorIs(t, err, ErrInvalidFormat, bad)
	}
}

func TestParseIDFromCallback(t *testing.T) {
	id, err := ParseIDFromCallback("cancel_booking:123")
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)

	_, err = ParseIDFromCallback("cancel_booking:abc")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = ParseIDFromCallback("cancel_booking")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("book_date:2026-10-20", BookDate)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", v)

	_, err = ParseValue("book_date:", BookDate)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
