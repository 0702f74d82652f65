package model

// Resource преподаватель, по календарю которого считаются слоты.
// Читается из конфигурации, ядро его не создаёт и не меняет.
type Resource struct {
	ID   string `json:"id"` // ID пользователя в CRM
	Name string `json:"name"`
}
