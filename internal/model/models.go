package model

// All returns every persisted model, in dependency order, for migrations.
func All() []interface{} {
	return []interface{}{
		&Student{},
		&Teacher{},
		&ThesisProposal{},
		&Company{},
		&ThesisApplication{},
		&SupervisorLink{},
		&StatusHistoryEntry{},
		&Thesis{},
		&ThesisSupervisor{},
	}
}
