package lifecycle

import (
	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/models"
)

type operation int

const (
	opPause operation = iota
	opResume
	opWithdraw
	opReleaseMilestone
	opCancel
)

func (o operation) String() string {
	switch o {
	case opPause:
		return "pause"
	case opResume:
		return "resume"
	case opWithdraw:
		return "withdraw"
	case opReleaseMilestone:
		return "release_milestone"
	case opCancel:
		return "cancel"
	}
	return "unknown"
}

// rejections maps (status, operation) pairs that are not allowed to the error
// they fail with. Pairs that are absent are permitted.
var rejections = map[models.Status]map[operation]*apperr.Error{
	models.StatusActive: {
		opResume: apperr.ErrStreamNotPaused,
	},
	models.StatusMilestoneUnlocked: {
		opResume: apperr.ErrStreamNotPaused,
	},
	models.StatusPaused: {
		opPause: apperr.ErrStreamAlreadyPaused,
	},
	models.StatusCompleted: {
		opPause:            apperr.ErrStreamNotActive,
		opResume:           apperr.ErrStreamNotActive,
		opWithdraw:         apperr.ErrStreamNotActive,
		opReleaseMilestone: apperr.ErrStreamNotActive,
		opCancel:           apperr.ErrStreamNotActive,
	},
	models.StatusCancelled: {
		opPause:            apperr.ErrStreamNotActive,
		opResume:           apperr.ErrStreamNotActive,
		opWithdraw:         apperr.ErrStreamNotActive,
		opReleaseMilestone: apperr.ErrStreamIsCancelled,
		opCancel:           apperr.ErrStreamNotActive,
	},
}

// admit returns the state error for applying op to a stream in status, or nil.
func admit(status models.Status, op operation) error {
	if err, ok := rejections[status][op]; ok {
		return err
	}
	return nil
}
