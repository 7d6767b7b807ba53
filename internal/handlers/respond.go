package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/milepost-dev/milepost/db"
	"github.com/milepost-dev/milepost/internal/apperr"
	"github.com/milepost-dev/milepost/internal/auth"
	"github.com/milepost-dev/milepost/internal/services"
)

// Dispatcher receives the pending events services return. Set from main
// before the router starts serving.
var Dispatcher *services.Dispatcher

func membershipService() *services.MembershipService {
	return services.NewMembershipService(db.DB)
}

func invitationService() *services.InvitationService {
	return services.NewInvitationService(db.DB, auth.InviteSecret())
}

func milestoneService() *services.MilestoneService {
	return services.NewMilestoneService(db.DB)
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorised:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(ctx *gin.Context, err error) {
	var appErr *apperr.Error

	if !errors.As(err, &appErr) {
		log.Printf("Unexpected error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if appErr.Kind == apperr.KindInternal {
		log.Printf("Internal error: %v", appErr)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	body := gin.H{"error": appErr.Message}

	if len(appErr.Meta) > 0 {
		body["meta"] = appErr.Meta
	}

	ctx.JSON(statusForKind(appErr.Kind), body)
}
