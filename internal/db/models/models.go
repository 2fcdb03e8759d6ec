package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Scope{},
		&Addon{},
		&Install{},
		&AccessToken{},
		&Glance{},
		&GlanceUpdate{},
		&Config{},
	}
}
