package service

import (
	"strconv"

	"thesis-service/internal/apperr"
	"thesis-service/internal/lifecycle"
	"thesis-service/internal/model"
)

// Statuses each role may request. Admins may request any status.
var (
	studentTargets = map[lifecycle.Status]bool{
		lifecycle.Canceled:            true,
		lifecycle.ConclusionRequested: true,
	}
	teacherTargets = map[lifecycle.Status]bool{
		lifecycle.Accepted:           true,
		lifecycle.Rejected:           true,
		lifecycle.ConclusionAccepted: true,
		lifecycle.Done:               true,
	}
)

// authorizeTransition checks that caller may move app to next. app.Supervisors must be loaded.
func authorizeTransition(caller model.Caller, app *model.ThesisApplication, next lifecycle.Status) error {
	switch {
	case caller.IsAdmin():
		return nil
	case caller.IsStudent():
		if app.StudentID != caller.ID {
			return apperr.Forbidden("thesis application belongs to another student")
		}
		if !studentTargets[next] {
			return apperr.Forbidden("students cannot set status " + next.String())
		}
		return nil
	case caller.IsTeacher():
		if !supervises(caller, app) {
			return apperr.Forbidden("teacher does not supervise this thesis application")
		}
		if !teacherTargets[next] {
			return apperr.Forbidden("teachers cannot set status " + next.String())
		}
		return nil
	default:
		return apperr.Forbidden("unknown role")
	}
}

func supervises(caller model.Caller, app *model.ThesisApplication) bool {
	id, err := strconv.ParseUint(caller.ID, 10, 64)
	if err != nil {
		return false
	}
	for _, link := range app.Supervisors {
		if uint64(link.TeacherID) == id {
			return true
		}
	}
	return false
}
