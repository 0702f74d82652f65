package model

import "time"

// BusyInterval занятый интервал [Start, End) в календаре преподавателя
type BusyInterval struct {
	ResourceID string
	SourceID   string // ID события в CRM
	Start      time.Time
	End        time.Time
}

// Overlaps проверяет пересечение полуинтервалов.
// Встык (End == start) пересечением не считается.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// Slot кандидат на бронирование и преподаватели, свободные в это время
type Slot struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	ResourceIDs []string  `json:"resource_ids"`
}

// HasResource проверяет, свободен ли преподаватель в этом слоте
func (s Slot) HasResource(resourceID string) bool {
	for _, id := range s.ResourceIDs {
		if id == resourceID {
			return true
		}
	}
	return false
}
