package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/services"
	"github.com/milepost-dev/milepost/internal/types"
	"github.com/milepost-dev/milepost/internal/utils"
)

type CreateInvitationRequest struct {
	ResourceType string `json:"resource_type" binding:"required"`
	ResourceID   uint   `json:"resource_id" binding:"required"`
	InviteeEmail string `json:"invitee_email" binding:"required,email"`
	TTLDays      int    `json:"ttl_days"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token" binding:"required"`
}

const defaultInviteTTLDays = 7

func invitationResponse(invitation *models.Invitation) types.InvitationResponse {
	return types.InvitationResponse{
		ID:           invitation.ID,
		ResourceType: invitation.ResourceType,
		ResourceID:   invitation.ResourceID,
		InviteeEmail: invitation.InviteeEmail,
		ExpiresAt:    invitation.ExpiresAt,
		Consumed:     invitation.ConsumedAt != nil,
		Revoked:      invitation.RevokedAt != nil,
	}
}

func CreateInvitation(ctx *gin.Context) {
	var req CreateInvitationRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if req.TTLDays == 0 {
		req.TTLDays = defaultInviteTTLDays
	}

	result, err := invitationService().CreateInvitation(req.ResourceType, req.ResourceID, req.InviteeEmail, userID, req.TTLDays)

	if err != nil {
		respondError(ctx, err)
		return
	}

	// Email delivery is best-effort and must never fail the request.
	if Dispatcher != nil {
		Dispatcher.Dispatch(result.Events...)
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"invitation": invitationResponse(result.Invitation),
		"token":      result.SignedToken,
	})
}

// VerifyInvitation is the invite-landing pre-render check: signature and
// expiry only, no consumption lookup and no side effects.
func VerifyInvitation(ctx *gin.Context) {
	token := ctx.Query("token")

	if token == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	claims, err := invitationService().VerifyToken(token)

	if err != nil {
		kind := "malformed"

		switch err {
		case services.ErrTokenSignatureInvalid:
			kind = "signature_invalid"
		case services.ErrTokenExpired:
			kind = "expired"
		}

		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": kind})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"resource_type": claims.ResourceType,
		"resource_id":   claims.ResourceID,
		"invitee_email": claims.InviteeEmail,
		"expires_at":    claims.ExpiresAt.Time,
	})
}

func AcceptInvitation(ctx *gin.Context) {
	var req AcceptInvitationRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	result, err := invitationService().AcceptInvitation(req.Token, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	body := gin.H{
		"resource_type": result.ResourceType,
		"role":          result.Role,
	}

	if result.Team != nil {
		body["team"] = teamResponse(result.Team)
	}

	if result.Project != nil {
		body["project"] = projectResponse(result.Project)
	}

	ctx.JSON(http.StatusOK, body)
}

func RevokeInvitation(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	invitationID, err := utils.GetIDParam(ctx, "invitation_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := invitationService().RevokeInvitation(invitationID, userID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func ListInvitations(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	resourceType := ctx.Query("resource_type")

	resourceID, err := utils.ParseUintQuery(ctx, "resource_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invitations, err := invitationService().ListInvitations(resourceType, resourceID, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	response := make([]types.InvitationResponse, 0, len(invitations))

	for i := range invitations {
		response = append(response, invitationResponse(&invitations[i]))
	}

	ctx.JSON(http.StatusOK, response)
}
