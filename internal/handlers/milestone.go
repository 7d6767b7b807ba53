package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/services"
	"github.com/milepost-dev/milepost/internal/types"
	"github.com/milepost-dev/milepost/internal/utils"
)

type CreateMilestoneRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AssigneeIDs []uint     `json:"assignee_ids"`
	DueAt       *time.Time `json:"due_at"`
}

type UpdateMilestoneRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	DueAt       *time.Time `json:"due_at"`
	ClearDueAt  bool       `json:"clear_due_at"`
	AssigneeIDs *[]uint    `json:"assignee_ids"`
}

type ChangeMilestoneStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AddAssigneeRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func milestoneResponse(milestone *models.Milestone, assigneeIDs []uint) types.MilestoneResponse {
	if assigneeIDs == nil {
		assigneeIDs = []uint{}
	}

	return types.MilestoneResponse{
		ID:          milestone.ID,
		Slug:        milestone.Slug,
		Name:        milestone.Name,
		Description: milestone.Description,
		ProjectID:   milestone.ProjectID,
		Status:      milestone.Status,
		DueAt:       milestone.DueAt,
		DueStatus:   services.DueStatus(milestone.DueAt, time.Now()),
		AssigneeIDs: assigneeIDs,
	}
}

func broadcastProjectRefresh(projectID uint) {
	BroadcastRefresh(strconv.FormatUint(uint64(projectID), 10))
}

func CreateMilestone(ctx *gin.Context) {
	var req CreateMilestoneRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, err := milestoneService().CreateMilestone(services.CreateMilestoneInput{
		Name:        req.Name,
		Description: req.Description,
		ProjectID:   projectID,
		Status:      req.Status,
		AssigneeIDs: req.AssigneeIDs,
		DueAt:       req.DueAt,
	}, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	assigneeIDs, err := milestoneService().AssigneeIDs(milestone.ID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	broadcastProjectRefresh(projectID)

	ctx.JSON(http.StatusCreated, milestoneResponse(milestone, assigneeIDs))
}

func ListMilestones(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestones, err := milestoneService().ListMilestones(projectID, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	response := make([]types.MilestoneResponse, 0, len(milestones))

	for i := range milestones {
		assigneeIDs, err := milestoneService().AssigneeIDs(milestones[i].ID)

		if err != nil {
			respondError(ctx, err)
			return
		}

		response = append(response, milestoneResponse(&milestones[i], assigneeIDs))
	}

	ctx.JSON(http.StatusOK, response)
}

func GetMilestone(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	milestoneID, err := utils.GetMilestoneID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, assigneeIDs, err := milestoneService().GetMilestone(milestoneID, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, milestoneResponse(milestone, assigneeIDs))
}

func UpdateMilestone(ctx *gin.Context) {
	var req UpdateMilestoneRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	milestoneID, err := utils.GetMilestoneID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, err := milestoneService().EditMilestone(milestoneID, services.EditMilestoneInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		DueAt:       req.DueAt,
		ClearDueAt:  req.ClearDueAt,
		AssigneeIDs: req.AssigneeIDs,
	}, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	assigneeIDs, err := milestoneService().AssigneeIDs(milestone.ID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	broadcastProjectRefresh(milestone.ProjectID)

	ctx.JSON(http.StatusOK, milestoneResponse(milestone, assigneeIDs))
}

// ChangeMilestoneStatus is the status-only move any project member may
// perform; full jumps are allowed, adjacency is a client concern.
func ChangeMilestoneStatus(ctx *gin.Context) {
	var req ChangeMilestoneStatusRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	milestoneID, err := utils.GetMilestoneID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, err := milestoneService().ChangeStatus(milestoneID, req.Status, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	assigneeIDs, err := milestoneService().AssigneeIDs(milestone.ID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	broadcastProjectRefresh(milestone.ProjectID)

	ctx.JSON(http.StatusOK, milestoneResponse(milestone, assigneeIDs))
}

func DeleteMilestone(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	milestoneID, err := utils.GetMilestoneID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := milestoneService().DeleteMilestone(milestoneID, userID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func AddMilestoneAssignee(ctx *gin.Context) {
	var req AddAssigneeRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	milestoneID, err := utils.GetMilestoneID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := milestoneService().AddAssignee(milestoneID, req.UserID, userID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Assignee added"})
}

func RemoveMilestoneAssignee(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	milestoneID, err := utils.GetMilestoneID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targetUserID, err := utils.GetIDParam(ctx, "user_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := milestoneService().RemoveAssignee(milestoneID, targetUserID, userID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
