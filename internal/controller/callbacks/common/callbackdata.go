package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Форматы callback data. Лимит Telegram 64 байта.
const (
	Noop        = "noop"
	BackToDates = "back_to_dates"
	MyBookings  = "my_bookings"

	BookDate = "book_date:" // book_date:2026-10-20
	BookTime = "book_time:" // book_time:2026-10-20T1400

	Reschedule     = "reschedule:"    // reschedule:42
	RescheduleDate = "resched_date:"  // resched_date:42:2026-10-20
	RescheduleTime = "resched_time:"  // resched_time:42:2026-10-20T1400
	CancelBooking  = "cancel_booking:" // cancel_booking:42
	ConfirmCancel  = "confirm_cancel:" // confirm_cancel:42
)

const (
	dateLayout     = "2006-01-02"
	slotTimeLayout = "2006-01-02T1504"
)

// EncodeSlotTime компактная запись начала слота для callback data
func EncodeSlotTime(t time.Time) string {
	return t.Format(slotTimeLayout)
}

// DecodeSlotTime разбирает EncodeSlotTime в часовом поясе расписания
func DecodeSlotTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(slotTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return t, nil
}

// ParseDate проверяет ключ даты из callback data
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return t, nil
}

// ParseValue отрезает префикс: "book_date:2026-10-20" -> "2026-10-20"
func ParseValue(data, prefix string) (string, error) {
	value, ok := strings.CutPrefix(data, prefix)
	if !ok || value == "" {
		return "", ErrInvalidFormat
	}
	return value, nil
}

// ParseIDAndValue разбирает "resched_time:42:2026-10-20T1400" -> 42, "2026-10-20T1400"
func ParseIDAndValue(data, prefix string) (int64, string, error) {
	rest, err := ParseValue(data, prefix)
	if err != nil {
		return 0, "", err
	}
	rawID, value, ok := strings.Cut(rest, ":")
	if !ok || value == "" {
		return 0, "", ErrInvalidFormat
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return id, value, nil
}

// ParseIDFromCallback извлекает ID из callback data
// Например: "cancel_booking:123" -> 123
func ParseIDFromCallback(data string) (int64, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0, ErrInvalidFormat
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return id, nil
}
